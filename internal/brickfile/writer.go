package brickfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brickvol/brickvol/internal/bvlerr"
	"github.com/brickvol/brickvol/internal/metadata"
)

// Writer streams brick payloads to a new container file and finalizes
// the header once every brick's offset/size/flags are known. Used by
// internal/builder.
//
// Sequence: Create (reserves header space sized from brick/level
// counts, which are known before any payload is encoded), WriteBrick
// per brick in ascending index order, then Finalize once uniqueID and
// every brick entry are filled in. Because the header's byte length
// depends only on counts (every field is fixed-width, and variable
// strings like DESCRIPTION don't change between the placeholder and
// the final write), Finalize never has to move payload bytes.
type Writer struct {
	f          *os.File
	bw         *bufio.Writer
	dataOffset int64
	cursor     int64
	tmpPath    string
	finalPath  string
}

// Create opens <finalPath>.tmp-<pid>, writes a placeholder header sized
// from placeholder (whose Bricks/Levels slices must already have their
// final length; other values may be zero), and returns a Writer ready
// for WriteBrick calls.
func Create(finalPath string, placeholder *metadata.Metadata) (*Writer, error) {
	tmpPath := fmt.Sprintf("%s.tmp-%d", finalPath, os.Getpid())
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.Create", err)
	}

	blob, err := placeholder.Encode()
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Write(encodePreamble(CurrentVersion, uint32(len(blob)))); err != nil {
		f.Close()
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.Create", err)
	}
	if _, err := f.Write(blob); err != nil {
		f.Close()
		return nil, bvlerr.Wrap(bvlerr.IO, "brickfile.Create", err)
	}

	dataOffset := preambleLen + int64(len(blob))
	return &Writer{
		f:          f,
		bw:         bufio.NewWriterSize(f, 1<<20),
		dataOffset: dataOffset,
		cursor:     dataOffset,
		tmpPath:    tmpPath,
		finalPath:  finalPath,
	}, nil
}

// WriteBrick appends data (already encoded per the dataset's codec) and
// returns its absolute file offset.
func (w *Writer) WriteBrick(data []byte) (uint64, error) {
	off := w.cursor
	if len(data) > 0 {
		n, err := w.bw.Write(data)
		if err != nil {
			return 0, bvlerr.Wrap(bvlerr.IO, "brickfile.WriteBrick", err)
		}
		w.cursor += int64(n)
	}
	return uint64(off), nil
}

// Finalize rewrites the header in place with the fully populated
// metadata (uniqueID and every brick's offset/size/flags), then fsyncs
// the file and directory and atomically renames it into place.
func (w *Writer) Finalize(final *metadata.Metadata) error {
	if err := w.bw.Flush(); err != nil {
		return bvlerr.Wrap(bvlerr.IO, "brickfile.Finalize", err)
	}

	blob, err := final.Encode()
	if err != nil {
		return err
	}
	if int64(len(blob))+preambleLen != w.dataOffset {
		return bvlerr.Wrap(bvlerr.Format, "brickfile.Finalize", errHeaderSizeChanged)
	}
	if _, err := w.f.WriteAt(blob, preambleLen); err != nil {
		return bvlerr.Wrap(bvlerr.IO, "brickfile.Finalize", err)
	}

	if err := w.f.Sync(); err != nil {
		return bvlerr.Wrap(bvlerr.IO, "brickfile.Finalize", err)
	}
	if err := w.f.Close(); err != nil {
		return bvlerr.Wrap(bvlerr.IO, "brickfile.Finalize", err)
	}
	if err := os.Rename(w.tmpPath, w.finalPath); err != nil {
		return bvlerr.Wrap(bvlerr.IO, "brickfile.Finalize", err)
	}
	if dir, err := os.Open(filepath.Dir(w.finalPath)); err == nil {
		dir.Sync()
		dir.Close()
	}
	return nil
}

// Abort discards the temp file without publishing it.
func (w *Writer) Abort() error {
	w.f.Close()
	return os.Remove(w.tmpPath)
}
