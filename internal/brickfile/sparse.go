package brickfile

import (
	"os"

	"github.com/brickvol/brickvol/internal/bvlerr"
	"github.com/brickvol/brickvol/internal/codec"
	"github.com/brickvol/brickvol/internal/metadata"
)

// SparseWriter is a write-through local cache file (C7): a valid
// brickfile container whose full length is reserved up front (one
// worst-case-sized slot per NORMAL brick) and whose payload bytes are
// filled in lazily, brick by brick, as fetches complete. A SparseWriter
// is also openable as an ordinary Reader at any point, even partially
// filled: unfetched NORMAL bricks simply read back zero bytes at their
// still-all-zero slot until patched — callers distinguish "not yet
// fetched" from "fetched" via their own residency bookkeeping, not by
// reading brick content.
type SparseWriter struct {
	f    *os.File
	meta *metadata.Metadata
}

// CreateSparse writes the header and reserves worst-case-sized slots
// for every NORMAL brick named in meta (EMPTY/CHILD_EMPTY bricks need
// no slot, same as an ordinary build). meta.Bricks must already carry
// final Flags (copied from the remote dataset's metadata on OPEN); only
// Offset/Size are computed here.
func CreateSparse(path string, meta *metadata.Metadata) (*SparseWriter, error) {
	rawBrickLen := meta.BS * meta.BS * meta.BS * meta.B
	reserved := codec.MaxEncodedLen(meta.CodecTag, rawBrickLen)

	placeholder := *meta
	placeholder.Bricks = make([]metadata.BrickEntry, len(meta.Bricks))
	copy(placeholder.Bricks, meta.Bricks)

	f, err := os.Create(path)
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.CreateSparse", err)
	}

	blob, err := placeholder.Encode()
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Write(encodePreamble(CurrentVersion, uint32(len(blob)))); err != nil {
		f.Close()
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.CreateSparse", err)
	}
	dataOffset := int64(preambleLen + len(blob))
	if _, err := f.Write(blob); err != nil {
		f.Close()
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.CreateSparse", err)
	}

	cursor := dataOffset
	for i := range placeholder.Bricks {
		e := &placeholder.Bricks[i]
		if e.Flags != metadata.Normal {
			e.Offset, e.Size = 0, 0
			continue
		}
		e.Offset = uint64(cursor)
		e.Size = 0 // becomes the real compressed size once patched
		cursor += int64(reserved)
	}
	if err := f.Truncate(cursor); err != nil {
		f.Close()
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.CreateSparse", err)
	}

	blob2, err := placeholder.Encode()
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.WriteAt(blob2, preambleLen); err != nil {
		f.Close()
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.CreateSparse", err)
	}

	return &SparseWriter{f: f, meta: &placeholder}, nil
}

// PatchBrick writes compressed (already-encoded) bytes into brick i's
// reserved slot and updates that single brick-table entry in place.
func (w *SparseWriter) PatchBrick(i uint32, compressed []byte) error {
	entry := w.meta.Bricks[i]
	if entry.Flags != metadata.Normal {
		return nil
	}
	if _, err := w.f.WriteAt(compressed, int64(entry.Offset)); err != nil {
		return bvlerr.Wrap(bvlerr.IO, "brickfile.PatchBrick", err)
	}
	w.meta.Bricks[i].Size = uint64(len(compressed))
	if err := w.rewriteBrickEntry(i); err != nil {
		return err
	}
	return nil
}

// rewriteBrickEntry persists brick i's updated table entry by
// re-encoding the whole metadata blob and rewriting it in place after
// the preamble (the blob is small compared to brick payloads).
func (w *SparseWriter) rewriteBrickEntry(i uint32) error {
	blob, err := w.meta.Encode()
	if err != nil {
		return err
	}
	if _, err := w.f.WriteAt(blob, preambleLen); err != nil {
		return bvlerr.Wrap(bvlerr.IO, "brickfile.rewriteBrickEntry", err)
	}
	return nil
}

// Metadata returns the writer's current (possibly partially filled) view.
func (w *SparseWriter) Metadata() *metadata.Metadata { return w.meta }

func (w *SparseWriter) Close() error { return w.f.Close() }

// AsReader reopens the sparse file through the ordinary Reader path so a
// client can serve already-fetched bricks exactly like any other dataset.
func (w *SparseWriter) AsReader(path string) (*Reader, error) {
	return Open(path)
}

// OpenSparseExisting reopens a previously created local cache file for
// continued patching, trusting whatever bricks it already holds (the
// "on reconnect with the same uniqueID, cached bricks MUST be trusted
// without re-fetch" requirement). The caller is responsible for first
// checking the file's UniqueID against the freshly OPENed remote dataset.
func OpenSparseExisting(path string) (*SparseWriter, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.OpenSparseExisting", err)
	}
	pre := make([]byte, preambleLen)
	if _, err := f.ReadAt(pre, 0); err != nil {
		f.Close()
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.OpenSparseExisting", err)
	}
	_, headerLen, err := decodePreamble(pre)
	if err != nil {
		f.Close()
		return nil, err
	}
	blob := make([]byte, headerLen)
	if _, err := f.ReadAt(blob, preambleLen); err != nil {
		f.Close()
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.OpenSparseExisting", err)
	}
	meta, err := metadata.Decode(blob)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &SparseWriter{f: f, meta: meta}, nil
}

// IsBrickCached reports whether brick i already has patched content.
func (w *SparseWriter) IsBrickCached(i uint32) bool {
	return w.meta.Bricks[i].Flags == metadata.Normal && w.meta.Bricks[i].Size > 0
}

// ReadCachedBrick reads brick i's already-patched compressed bytes.
func (w *SparseWriter) ReadCachedBrick(i uint32, buf []byte) ([]byte, error) {
	entry := w.meta.Bricks[i]
	if uint64(len(buf)) < entry.Size {
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.ReadCachedBrick", errBufferTooSmall)
	}
	out := buf[:entry.Size]
	if _, err := w.f.ReadAt(out, int64(entry.Offset)); err != nil {
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.ReadCachedBrick", err)
	}
	return out, nil
}
