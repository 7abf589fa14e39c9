// Package dataset defines the narrow capability set the atlas manager
// (C8) consumes, satisfied by both a local brickfile.Reader and a
// remote rclient.Dataset — the "sum type / capability set" substitution
// point called out in spec.md §9's design notes.
package dataset

import "github.com/brickvol/brickvol/internal/metadata"

// Source is a dataset the atlas manager and the remote server can read
// bricks from, local or remote.
type Source interface {
	Metadata() *metadata.Metadata
	RawBrick(i uint32, buf []byte) ([]byte, error)
	Brick(i uint32, buf []byte) error
	AllocateBrickBuffer() []byte
}
