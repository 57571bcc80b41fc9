// Package treestore is a pure Go container engine. A file is held in
// memory as a tree of groups and datasets and persisted on Flush and
// Close as a single compressed CBOR snapshot.
package treestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/next-exp/rawdata_go/pkg/container"
)

// Store opens snapshot files. The zero value writes uncompressed snapshots.
type Store struct {
	Compression Compression
}

// EngineName is the name the store registers under.
const EngineName = "tree"

func init() {
	container.Register(EngineName, New(CompressionZSTD))
}

// New returns a Store writing snapshots with the given codec.
func New(compression Compression) *Store {
	return &Store{Compression: compression}
}

// Open implements container.Opener.
func (s *Store) Open(path string, mode container.Mode) (container.File, error) {
	f := &file{path: path, mode: mode, codec: s.Compression}

	switch mode {
	case container.ReadOnly:
		root, err := load(path)
		if err != nil {
			return nil, err
		}
		f.root = root
		return f, nil
	case container.Truncate:
		f.root = newGroupNode()
	case container.ReadWrite:
		root, err := load(path)
		switch {
		case err == nil:
			f.root = root
		case errors.Is(err, fs.ErrNotExist):
			f.root = newGroupNode()
		default:
			return nil, err
		}
	case container.Exclusive:
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("%q: %w", path, container.ErrExists)
		}
		f.root = newGroupNode()
	default:
		return nil, fmt.Errorf("unsupported open mode %v", mode)
	}

	// Writable files exist on disk from the moment they are opened.
	if err := f.Flush(); err != nil {
		return nil, err
	}
	return f, nil
}

func load(path string) (*node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	root, _, err := decodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	if root.Kind != container.GroupObject {
		return nil, fmt.Errorf("%q: root is not a group: %w", path, ErrBadSnapshot)
	}
	return root, nil
}

type file struct {
	path   string
	mode   container.Mode
	codec  Compression
	root   *node
	closed bool
}

func (f *file) Name() string { return f.path }

func (f *file) Root() container.Group {
	return &group{attrs: attrs{f: f, n: f.root}, path: "/"}
}

func (f *file) checkOpen() error {
	if f.closed {
		return container.ErrClosed
	}
	return nil
}

func (f *file) checkWritable() error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if f.mode == container.ReadOnly {
		return container.ErrReadOnly
	}
	return nil
}

// Flush writes the snapshot next to the target and renames it into place.
func (f *file) Flush() error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if f.mode == container.ReadOnly {
		return nil
	}
	data, err := encodeSnapshot(f.root, f.codec)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *file) Close() error {
	if f.closed {
		return nil
	}
	err := f.Flush()
	f.closed = true
	f.root = nil
	return err
}
