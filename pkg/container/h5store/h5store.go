//go:build hdf5

// Package h5store is the HDF5 container engine. It needs cgo, the HDF5 C
// library and, for Blosc compression, the Blosc filter plugin.
package h5store

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/next-exp/hdf5-go"

	"github.com/next-exp/rawdata_go/pkg/container"
)

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error { return e.Err }

// EngineName is the name the store registers under.
const EngineName = "hdf5"

// chunkSize is the largest chunk of a compressed dataset.
const chunkSize = 32768

func init() {
	container.Register(EngineName, New())
}

// Store opens HDF5 files. Datasets are written with its compression.
type Store struct {
	compression container.DatasetCompression
}

// New returns an HDF5 container opener that writes uncompressed datasets.
func New() *Store {
	return &Store{}
}

// WithCompression returns a store whose new datasets are chunked and
// filtered with c.
func (s *Store) WithCompression(c container.DatasetCompression) container.Opener {
	return &Store{compression: c}
}

func (s *Store) Open(path string, mode container.Mode) (container.File, error) {
	var (
		f   *hdf5.File
		err error
	)
	switch mode {
	case container.ReadOnly:
		f, err = hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	case container.Truncate:
		f, err = hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	case container.ReadWrite:
		if _, statErr := os.Stat(path); statErr == nil {
			f, err = hdf5.OpenFile(path, hdf5.F_ACC_RDWR)
		} else {
			f, err = hdf5.CreateFile(path, hdf5.F_ACC_EXCL)
		}
	case container.Exclusive:
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, &ErrOpenFile{Filename: path, Err: container.ErrExists}
		}
		f, err = hdf5.CreateFile(path, hdf5.F_ACC_EXCL)
	default:
		return nil, fmt.Errorf("unsupported open mode %v", mode)
	}
	if err != nil {
		return nil, &ErrOpenFile{Filename: path, Err: err}
	}

	root, err := f.OpenGroup("/")
	if err != nil {
		f.Close()
		return nil, &ErrOpenFile{Filename: path, Err: err}
	}
	h := &file{path: path, mode: mode, f: f, compression: s.compression}
	h.root = &group{attrs: attrs{h: h, loc: root}, g: root, path: "/"}
	return h, nil
}

type file struct {
	path        string
	mode        container.Mode
	f           *hdf5.File
	root        *group
	compression container.DatasetCompression
	closed      bool
}

func (h *file) Name() string { return h.path }

func (h *file) Root() container.Group { return h.root }

func (h *file) checkOpen() error {
	if h.closed {
		return container.ErrClosed
	}
	return nil
}

func (h *file) checkWritable() error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	if h.mode == container.ReadOnly {
		return container.ErrReadOnly
	}
	return nil
}

func (h *file) Flush() error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	if h.mode == container.ReadOnly {
		return nil
	}
	return h.f.Flush(hdf5.F_SCOPE_GLOBAL)
}

func (h *file) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	errs := []error{}
	if err := h.root.g.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing root group: %w", err))
	}
	if err := h.f.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file: %w", err))
	}
	return errors.Join(errs...)
}

// attributeHolder is satisfied by groups and datasets.
type attributeHolder interface {
	CreateAttribute(name string, dtype *hdf5.Datatype, dspace *hdf5.Dataspace) (*hdf5.Attribute, error)
	OpenAttribute(name string) (*hdf5.Attribute, error)
}

type attrs struct {
	h   *file
	loc attributeHolder
}

func (a attrs) HasAttribute(name string) bool {
	attr, err := a.loc.OpenAttribute(name)
	if err != nil {
		return false
	}
	attr.Close()
	return true
}

func (a attrs) write(name string, value interface{}, dtype *hdf5.Datatype) error {
	if err := a.h.checkWritable(); err != nil {
		return err
	}
	attr, err := a.loc.OpenAttribute(name)
	if err != nil {
		space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
		if err != nil {
			return err
		}
		defer space.Close()
		attr, err = a.loc.CreateAttribute(name, dtype, space)
		if err != nil {
			return fmt.Errorf("error creating attribute %q: %w", name, err)
		}
	}
	defer attr.Close()
	return attr.Write(value, dtype)
}

func (a attrs) WriteString(name, value string) error {
	return a.write(name, &value, hdf5.T_GO_STRING)
}

func (a attrs) WriteUint(name string, value uint64) error {
	return a.write(name, &value, hdf5.T_NATIVE_UINT64)
}

func (a attrs) WriteFloat(name string, value float64) error {
	return a.write(name, &value, hdf5.T_NATIVE_DOUBLE)
}

func (a attrs) read(name string, value interface{}, dtype *hdf5.Datatype) error {
	if err := a.h.checkOpen(); err != nil {
		return err
	}
	attr, err := a.loc.OpenAttribute(name)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, container.ErrNotFound)
	}
	defer attr.Close()
	if err := attr.Read(value, dtype); err != nil {
		return fmt.Errorf("attribute %q: %v: %w", name, err, container.ErrTypeMismatch)
	}
	return nil
}

func (a attrs) ReadString(name string) (string, error) {
	var value string
	err := a.read(name, &value, hdf5.T_GO_STRING)
	return value, err
}

func (a attrs) ReadUint(name string) (uint64, error) {
	var value uint64
	err := a.read(name, &value, hdf5.T_NATIVE_UINT64)
	return value, err
}

func (a attrs) ReadFloat(name string) (float64, error) {
	var value float64
	err := a.read(name, &value, hdf5.T_NATIVE_DOUBLE)
	return value, err
}

type group struct {
	attrs
	g    *hdf5.Group
	path string
}

func (g *group) Path() string { return g.path }

func (g *group) Exists(name string) bool {
	// LinkExists only checks the last element, so walk the path.
	elements := container.SplitPath(name)
	for i := range elements {
		if !g.g.LinkExists(strings.Join(elements[:i+1], "/")) {
			return false
		}
	}
	return len(elements) > 0
}

func (g *group) CreateGroup(name string) (container.Group, error) {
	if err := g.h.checkWritable(); err != nil {
		return nil, err
	}
	if g.g.LinkExists(name) {
		return nil, fmt.Errorf("%q: %w", name, container.ErrExists)
	}
	child, err := g.g.CreateGroup(name)
	if err != nil {
		return nil, err
	}
	return &group{attrs: attrs{h: g.h, loc: child}, g: child, path: container.JoinPath(g.path, name)}, nil
}

func (g *group) OpenGroup(path string) (container.Group, error) {
	if err := g.h.checkOpen(); err != nil {
		return nil, err
	}
	if !g.Exists(path) {
		return nil, fmt.Errorf("%q: %w", path, container.ErrNotFound)
	}
	child, err := g.g.OpenGroup(path)
	if err != nil {
		return nil, fmt.Errorf("%q: %v: %w", path, err, container.ErrNotFound)
	}
	return &group{attrs: attrs{h: g.h, loc: child}, g: child, path: joinRelative(g.path, path)}, nil
}

func (g *group) CreateDataset(name string, size int) (container.Dataset, error) {
	if err := g.h.checkWritable(); err != nil {
		return nil, err
	}
	if g.g.LinkExists(name) {
		return nil, fmt.Errorf("%q: %w", name, container.ErrExists)
	}
	space, err := hdf5.CreateSimpleDataspace([]uint{uint(size), 1}, nil)
	if err != nil {
		return nil, err
	}
	defer space.Close()
	var ds *hdf5.Dataset
	if size > 0 && g.h.compression.Enabled() {
		ds, err = g.createCompressedDataset(name, size, space)
	} else {
		ds, err = g.g.CreateDataset(name, hdf5.T_NATIVE_UINT8, space)
	}
	if err != nil {
		return nil, err
	}
	return &dataset{attrs: attrs{h: g.h, loc: ds}, d: ds, size: size, path: container.JoinPath(g.path, name)}, nil
}

func (g *group) createCompressedDataset(name string, size int, space *hdf5.Dataspace) (*hdf5.Dataset, error) {
	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, fmt.Errorf("error creating property list: %w", err)
	}
	defer plist.Close()

	if err := plist.SetChunk([]uint{uint(min(size, chunkSize)), 1}); err != nil {
		return nil, fmt.Errorf("error setting chunk size: %w", err)
	}
	c := g.h.compression
	if c.UseBlosc {
		hdf5.ConfigureBloscFilter(plist, hdf5.BloscFilter(c.Algorithm.Code), c.Level, hdf5.BloscShuffle(c.Shuffle.Code))
	} else if err := plist.SetDeflate(c.Level); err != nil {
		return nil, fmt.Errorf("error setting deflate level: %w", err)
	}
	return g.g.CreateDatasetWith(name, hdf5.T_NATIVE_UINT8, space, plist)
}

func (g *group) OpenDataset(path string) (container.Dataset, error) {
	if err := g.h.checkOpen(); err != nil {
		return nil, err
	}
	if !g.Exists(path) {
		return nil, fmt.Errorf("%q: %w", path, container.ErrNotFound)
	}
	ds, err := g.g.OpenDataset(path)
	if err != nil {
		return nil, fmt.Errorf("%q: %v: %w", path, err, container.ErrNotFound)
	}
	space := ds.Space()
	size := space.SimpleExtentNPoints()
	space.Close()
	return &dataset{attrs: attrs{h: g.h, loc: ds}, d: ds, size: size, path: joinRelative(g.path, path)}, nil
}

func (g *group) Children() ([]container.Child, error) {
	if err := g.h.checkOpen(); err != nil {
		return nil, err
	}
	n, err := g.g.NumObjects()
	if err != nil {
		return nil, err
	}
	children := make([]container.Child, 0, n)
	for i := uint(0); i < n; i++ {
		name, err := g.g.ObjectNameByIndex(i)
		if err != nil {
			return nil, err
		}
		gtype, err := g.g.ObjectTypeByIndex(i)
		if err != nil {
			return nil, err
		}
		kind := container.UnknownObject
		switch gtype {
		case hdf5.H5G_GROUP:
			kind = container.GroupObject
		case hdf5.H5G_DATASET:
			kind = container.DatasetObject
		}
		children = append(children, container.Child{Name: name, Type: kind})
	}
	return children, nil
}

func (g *group) Close() error {
	if g.path == "/" {
		return nil
	}
	return g.g.Close()
}

type dataset struct {
	attrs
	d    *hdf5.Dataset
	size int
	path string
}

func (d *dataset) Path() string { return d.path }

func (d *dataset) Size() int { return d.size }

func (d *dataset) WriteRaw(data []byte) error {
	if err := d.h.checkWritable(); err != nil {
		return err
	}
	if len(data) != d.size {
		return fmt.Errorf("dataset %q holds %d bytes, got %d", d.path, d.size, len(data))
	}
	if d.size == 0 {
		return nil
	}
	return d.d.Write(&data)
}

func (d *dataset) ReadRaw() ([]byte, error) {
	if err := d.h.checkOpen(); err != nil {
		return nil, err
	}
	data := make([]byte, d.size)
	if d.size == 0 {
		return data, nil
	}
	if err := d.d.Read(&data); err != nil {
		return nil, err
	}
	return data, nil
}

func (d *dataset) Close() error { return d.d.Close() }

func joinRelative(base, relative string) string {
	path := base
	for _, element := range container.SplitPath(relative) {
		path = container.JoinPath(path, element)
	}
	return path
}
