package metadata

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/brickvol/brickvol/internal/bvlerr"
)

const (
	brickEntrySize = 25 // offset(8) + size(8) + flags(1) + minValue(4) + maxValue(4)
	levelEntrySize = 24 // bricksX,Y,Z (4 each) + prevBricks(4) + reserved(8)
)

var requiredKeys = []string{
	"VERSION", "CODEC", "B", "BS", "OV", "W", "H", "D", "LEVELS", "UID",
	"MIN", "MAX", "RANGEMAX", "ASPECTX", "ASPECTY", "ASPECTZ", "EXT", "DESCRIPTION",
}

// Encode serializes m into the wire layout stored at [16..16+HEADER_LEN)
// of a bricked volume file: a KV count-prefixed map, then the level
// table, then the brick table (plus trailing checksums if any brick
// entry set the has-checksum flag bit).
func (m *Metadata) Encode() ([]byte, error) {
	kv := map[string]string{
		"VERSION":     strconv.Itoa(m.Version),
		"CODEC":       strconv.Itoa(int(m.CodecTag)),
		"B":           strconv.Itoa(m.B),
		"BS":          strconv.Itoa(m.BS),
		"OV":          strconv.Itoa(m.OV),
		"W":           strconv.Itoa(m.W),
		"H":           strconv.Itoa(m.H),
		"D":           strconv.Itoa(m.D),
		"LEVELS":      strconv.Itoa(len(m.Levels)),
		"UID":         hex.EncodeToString(m.UniqueID[:]),
		"MIN":         strconv.FormatFloat(m.MinValue, 'g', 17, 64),
		"MAX":         strconv.FormatFloat(m.MaxValue, 'g', 17, 64),
		"RANGEMAX":    strconv.FormatFloat(m.RangeMax, 'g', 17, 64),
		"ASPECTX":     strconv.FormatFloat(m.Aspect.X(), 'g', 17, 64),
		"ASPECTY":     strconv.FormatFloat(m.Aspect.Y(), 'g', 17, 64),
		"ASPECTZ":     strconv.FormatFloat(m.Aspect.Z(), 'g', 17, 64),
		"EXT":         m.Ext.String(),
		"DESCRIPTION": m.Description,
	}
	for k, v := range m.Extra {
		kv[k] = v
	}

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(keys)))
	buf.Write(u32[:])
	for _, k := range keys {
		v := kv[k]
		var u16 [2]byte
		binary.LittleEndian.PutUint16(u16[:], uint16(len(k)))
		buf.Write(u16[:])
		buf.WriteString(k)
		binary.LittleEndian.PutUint16(u16[:], uint16(len(v)))
		buf.Write(u16[:])
		buf.WriteString(v)
	}

	binary.LittleEndian.PutUint32(u32[:], uint32(len(m.Levels)))
	buf.Write(u32[:])
	for _, lv := range m.Levels {
		var entry [levelEntrySize]byte
		binary.LittleEndian.PutUint32(entry[0:4], lv.BricksX)
		binary.LittleEndian.PutUint32(entry[4:8], lv.BricksY)
		binary.LittleEndian.PutUint32(entry[8:12], lv.BricksZ)
		binary.LittleEndian.PutUint32(entry[12:16], lv.PrevBricks)
		buf.Write(entry[:])
	}

	binary.LittleEndian.PutUint32(u32[:], uint32(len(m.Bricks)))
	buf.Write(u32[:])
	var checksums []byte
	hasAnyChecksum := false
	for _, b := range m.Bricks {
		var entry [brickEntrySize]byte
		binary.LittleEndian.PutUint64(entry[0:8], b.Offset)
		binary.LittleEndian.PutUint64(entry[8:16], b.Size)
		flags := byte(b.Flags) & 0x3
		if b.Checksum != 0 {
			flags |= 0x4
			hasAnyChecksum = true
		}
		entry[16] = flags
		binary.LittleEndian.PutUint32(entry[17:21], math.Float32bits(b.MinValue))
		binary.LittleEndian.PutUint32(entry[21:25], math.Float32bits(b.MaxValue))
		buf.Write(entry[:])
		var cs [4]byte
		binary.LittleEndian.PutUint32(cs[:], b.Checksum)
		checksums = append(checksums, cs[:]...)
	}
	if hasAnyChecksum {
		buf.Write(checksums)
	}

	return buf.Bytes(), nil
}

// Decode parses the blob written by Encode.
func Decode(blob []byte) (*Metadata, error) {
	r := &reader{b: blob}
	kvCount, err := r.u32()
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.Format, "metadata.Decode", err)
	}
	kv := make(map[string]string, kvCount)
	for i := uint32(0); i < kvCount; i++ {
		k, err := r.str16()
		if err != nil {
			return nil, bvlerr.Wrap(bvlerr.Format, "metadata.Decode", err)
		}
		v, err := r.str16()
		if err != nil {
			return nil, bvlerr.Wrap(bvlerr.Format, "metadata.Decode", err)
		}
		kv[k] = v
	}

	for _, req := range requiredKeys {
		if _, ok := kv[req]; !ok && req != "DESCRIPTION" {
			return nil, bvlerr.Wrap(bvlerr.Format, "metadata.Decode", fmt.Errorf("missing required key %s", req))
		}
	}

	m := &Metadata{Extra: map[string]string{}}
	m.Version = atoi(kv["VERSION"])
	m.CodecTag = byte(atoi(kv["CODEC"]))
	m.B = atoi(kv["B"])
	m.BS = atoi(kv["BS"])
	m.OV = atoi(kv["OV"])
	m.W = atoi(kv["W"])
	m.H = atoi(kv["H"])
	m.D = atoi(kv["D"])
	m.MinValue = atof(kv["MIN"])
	m.MaxValue = atof(kv["MAX"])
	m.RangeMax = atof(kv["RANGEMAX"])
	m.Aspect = mgl64.Vec3{atof(kv["ASPECTX"]), atof(kv["ASPECTY"]), atof(kv["ASPECTZ"])}
	m.Ext = ParseExtensionStrategy(kv["EXT"])
	m.Description = kv["DESCRIPTION"]
	uidBytes, err := hex.DecodeString(kv["UID"])
	if err != nil || len(uidBytes) != 16 {
		return nil, bvlerr.Wrap(bvlerr.Format, "metadata.Decode", fmt.Errorf("malformed UID"))
	}
	copy(m.UniqueID[:], uidBytes)

	consumed := map[string]bool{}
	for _, req := range requiredKeys {
		consumed[req] = true
	}
	for k, v := range kv {
		if !consumed[k] {
			m.Extra[k] = v
		}
	}

	levelCount, err := r.u32()
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.Format, "metadata.Decode", err)
	}
	m.Levels = make([]LevelEntry, levelCount)
	for i := range m.Levels {
		buf, err := r.take(levelEntrySize)
		if err != nil {
			return nil, bvlerr.Wrap(bvlerr.Format, "metadata.Decode", err)
		}
		m.Levels[i] = LevelEntry{
			BricksX:    binary.LittleEndian.Uint32(buf[0:4]),
			BricksY:    binary.LittleEndian.Uint32(buf[4:8]),
			BricksZ:    binary.LittleEndian.Uint32(buf[8:12]),
			PrevBricks: binary.LittleEndian.Uint32(buf[12:16]),
		}
	}

	brickCount, err := r.u32()
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.Format, "metadata.Decode", err)
	}
	m.Bricks = make([]BrickEntry, brickCount)
	hasChecksum := make([]bool, brickCount)
	anyChecksum := false
	for i := range m.Bricks {
		buf, err := r.take(brickEntrySize)
		if err != nil {
			return nil, bvlerr.Wrap(bvlerr.Format, "metadata.Decode", err)
		}
		flags := buf[16]
		m.Bricks[i] = BrickEntry{
			Offset:   binary.LittleEndian.Uint64(buf[0:8]),
			Size:     binary.LittleEndian.Uint64(buf[8:16]),
			Flags:    EmptinessFlag(flags & 0x3),
			MinValue: math.Float32frombits(binary.LittleEndian.Uint32(buf[17:21])),
			MaxValue: math.Float32frombits(binary.LittleEndian.Uint32(buf[21:25])),
		}
		if flags&0x4 != 0 {
			hasChecksum[i] = true
			anyChecksum = true
		}
	}
	if anyChecksum {
		for i := range m.Bricks {
			buf, err := r.take(4)
			if err != nil {
				return nil, bvlerr.Wrap(bvlerr.Format, "metadata.Decode", err)
			}
			if hasChecksum[i] {
				m.Bricks[i].Checksum = binary.LittleEndian.Uint32(buf)
			}
		}
	}

	return m, nil
}

type reader struct {
	b   []byte
	pos int
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.b) {
		return nil, fmt.Errorf("metadata: truncated blob")
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) u32() (uint32, error) {
	buf, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (r *reader) u16() (uint16, error) {
	buf, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func (r *reader) str16() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	buf, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
