// Package container describes the hierarchical store that raw-data files
// are written into: a tree of named groups holding byte datasets, with
// typed key/value attributes on groups, datasets and the root.
package container

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Mode selects how an Opener opens a file.
type Mode int

const (
	// ReadOnly opens an existing file for reading.
	ReadOnly Mode = iota
	// Truncate creates a file, discarding any existing content.
	Truncate
	// ReadWrite opens an existing file for update, creating it if needed.
	ReadWrite
	// Exclusive creates a file and fails if it already exists.
	Exclusive
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case Truncate:
		return "truncate"
	case ReadWrite:
		return "read-write"
	case Exclusive:
		return "exclusive"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ObjectType is the kind of a group member.
type ObjectType int

const (
	UnknownObject ObjectType = iota
	GroupObject
	DatasetObject
)

var (
	// ErrNotFound is returned when a group, dataset or attribute is missing.
	ErrNotFound = errors.New("object not found")
	// ErrExists is returned when creating an object whose name is taken.
	ErrExists = errors.New("object already exists")
	// ErrReadOnly is returned for write operations on a read-only file.
	ErrReadOnly = errors.New("file is read-only")
	// ErrTypeMismatch is returned when an attribute holds another type.
	ErrTypeMismatch = errors.New("attribute type mismatch")
	// ErrClosed is returned for operations on a closed file.
	ErrClosed = errors.New("file is closed")
)

// Opener opens container files. Implementations are the storage engines.
type Opener interface {
	Open(path string, mode Mode) (File, error)
}

// File is an open container file.
type File interface {
	// Name is the path the file was opened with.
	Name() string
	// Root returns the root group. It does not need to be closed.
	Root() Group
	Flush() error
	Close() error
}

// Attributes are the typed key/value pairs on a group or dataset.
type Attributes interface {
	HasAttribute(name string) bool
	WriteString(name, value string) error
	WriteUint(name string, value uint64) error
	WriteFloat(name string, value float64) error
	ReadString(name string) (string, error)
	ReadUint(name string) (uint64, error)
	ReadFloat(name string) (float64, error)
}

// Child is one member of a group.
type Child struct {
	Name string
	Type ObjectType
}

// Group is a named node that holds groups and datasets.
type Group interface {
	Attributes
	// Path is the absolute path of the group, "/" for the root.
	Path() string
	Exists(name string) bool
	CreateGroup(name string) (Group, error)
	// OpenGroup and OpenDataset accept slash separated relative paths.
	OpenGroup(path string) (Group, error)
	CreateDataset(name string, size int) (Dataset, error)
	OpenDataset(path string) (Dataset, error)
	// Children lists immediate members in name order.
	Children() ([]Child, error)
	Close() error
}

// Dataset is a fixed-size byte blob.
type Dataset interface {
	Attributes
	Path() string
	Size() int
	WriteRaw(data []byte) error
	ReadRaw() ([]byte, error)
	Close() error
}

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Opener)
)

// Register makes an engine available by name. Engines register
// themselves from init, like database/sql drivers.
func Register(name string, opener Opener) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if opener == nil {
		panic("container: Register opener is nil")
	}
	if _, dup := engines[name]; dup {
		panic("container: Register called twice for engine " + name)
	}
	engines[name] = opener
}

// Lookup returns the engine registered under name.
func Lookup(name string) (Opener, error) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	opener, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown container engine %q (forgotten import?)", name)
	}
	return opener, nil
}

// SplitPath breaks a slash separated path into its non-empty elements.
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	elements := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			elements = append(elements, p)
		}
	}
	return elements
}

// JoinPath joins a parent path and a child name into an absolute path.
func JoinPath(parent, name string) string {
	if parent == "" || parent == "/" {
		return "/" + name
	}
	return strings.TrimSuffix(parent, "/") + "/" + name
}
