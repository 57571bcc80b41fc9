package treestore

import (
	"fmt"
	"sort"

	"github.com/next-exp/rawdata_go/pkg/container"
)

type attrKind uint8

const (
	attrString attrKind = iota + 1
	attrUint
	attrFloat
)

func (k attrKind) String() string {
	switch k {
	case attrString:
		return "string"
	case attrUint:
		return "uint"
	case attrFloat:
		return "float"
	default:
		return "unknown"
	}
}

type attribute struct {
	Kind  attrKind `cbor:"k"`
	Str   string   `cbor:"s,omitempty"`
	Uint  uint64   `cbor:"u,omitempty"`
	Float float64  `cbor:"f,omitempty"`
}

// node is a group or a dataset. The exported fields are the snapshot
// encoding.
type node struct {
	Kind     container.ObjectType `cbor:"t"`
	Data     []byte               `cbor:"d,omitempty"`
	Attrs    map[string]attribute `cbor:"a,omitempty"`
	Children map[string]*node     `cbor:"c,omitempty"`
}

func newGroupNode() *node {
	return &node{Kind: container.GroupObject}
}

func (n *node) child(name string) (*node, bool) {
	if n.Children == nil {
		return nil, false
	}
	c, ok := n.Children[name]
	return c, ok
}

func (n *node) addChild(name string, c *node) error {
	if name == "" {
		return fmt.Errorf("empty object name: %w", container.ErrNotFound)
	}
	if _, ok := n.child(name); ok {
		return fmt.Errorf("%q: %w", name, container.ErrExists)
	}
	if n.Children == nil {
		n.Children = make(map[string]*node)
	}
	n.Children[name] = c
	return nil
}

func (n *node) sortedChildNames() []string {
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolve walks a relative path below n.
func (n *node) resolve(path string) (*node, error) {
	current := n
	for _, element := range container.SplitPath(path) {
		if current.Kind != container.GroupObject {
			return nil, fmt.Errorf("%q is not below a group: %w", path, container.ErrNotFound)
		}
		next, ok := current.child(element)
		if !ok {
			return nil, fmt.Errorf("%q: %w", path, container.ErrNotFound)
		}
		current = next
	}
	return current, nil
}

// attrs implements container.Attributes on a node.
type attrs struct {
	f *file
	n *node
}

func (a attrs) HasAttribute(name string) bool {
	_, ok := a.n.Attrs[name]
	return ok
}

func (a attrs) put(name string, value attribute) error {
	if err := a.f.checkWritable(); err != nil {
		return err
	}
	if a.n.Attrs == nil {
		a.n.Attrs = make(map[string]attribute)
	}
	a.n.Attrs[name] = value
	return nil
}

func (a attrs) WriteString(name, value string) error {
	return a.put(name, attribute{Kind: attrString, Str: value})
}

func (a attrs) WriteUint(name string, value uint64) error {
	return a.put(name, attribute{Kind: attrUint, Uint: value})
}

func (a attrs) WriteFloat(name string, value float64) error {
	return a.put(name, attribute{Kind: attrFloat, Float: value})
}

func (a attrs) get(name string, kind attrKind) (attribute, error) {
	if err := a.f.checkOpen(); err != nil {
		return attribute{}, err
	}
	value, ok := a.n.Attrs[name]
	if !ok {
		return attribute{}, fmt.Errorf("attribute %q: %w", name, container.ErrNotFound)
	}
	if value.Kind != kind {
		return attribute{}, fmt.Errorf("attribute %q holds %v, not %v: %w",
			name, value.Kind, kind, container.ErrTypeMismatch)
	}
	return value, nil
}

func (a attrs) ReadString(name string) (string, error) {
	value, err := a.get(name, attrString)
	return value.Str, err
}

func (a attrs) ReadUint(name string) (uint64, error) {
	value, err := a.get(name, attrUint)
	return value.Uint, err
}

func (a attrs) ReadFloat(name string) (float64, error) {
	value, err := a.get(name, attrFloat)
	return value.Float, err
}

type group struct {
	attrs
	path string
}

func (g *group) Path() string { return g.path }

func (g *group) Exists(name string) bool {
	_, err := g.n.resolve(name)
	return err == nil
}

func (g *group) CreateGroup(name string) (container.Group, error) {
	if err := g.f.checkWritable(); err != nil {
		return nil, err
	}
	n := newGroupNode()
	if err := g.n.addChild(name, n); err != nil {
		return nil, err
	}
	return &group{attrs: attrs{f: g.f, n: n}, path: container.JoinPath(g.path, name)}, nil
}

func (g *group) OpenGroup(path string) (container.Group, error) {
	if err := g.f.checkOpen(); err != nil {
		return nil, err
	}
	n, err := g.n.resolve(path)
	if err != nil {
		return nil, err
	}
	if n.Kind != container.GroupObject {
		return nil, fmt.Errorf("%q is not a group: %w", path, container.ErrNotFound)
	}
	return &group{attrs: attrs{f: g.f, n: n}, path: joinRelative(g.path, path)}, nil
}

func (g *group) CreateDataset(name string, size int) (container.Dataset, error) {
	if err := g.f.checkWritable(); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("dataset %q: negative size %d", name, size)
	}
	n := &node{Kind: container.DatasetObject, Data: make([]byte, size)}
	if err := g.n.addChild(name, n); err != nil {
		return nil, err
	}
	return &dataset{attrs: attrs{f: g.f, n: n}, path: container.JoinPath(g.path, name)}, nil
}

func (g *group) OpenDataset(path string) (container.Dataset, error) {
	if err := g.f.checkOpen(); err != nil {
		return nil, err
	}
	n, err := g.n.resolve(path)
	if err != nil {
		return nil, err
	}
	if n.Kind != container.DatasetObject {
		return nil, fmt.Errorf("%q is not a dataset: %w", path, container.ErrNotFound)
	}
	return &dataset{attrs: attrs{f: g.f, n: n}, path: joinRelative(g.path, path)}, nil
}

func (g *group) Children() ([]container.Child, error) {
	if err := g.f.checkOpen(); err != nil {
		return nil, err
	}
	names := g.n.sortedChildNames()
	children := make([]container.Child, len(names))
	for i, name := range names {
		children[i] = container.Child{Name: name, Type: g.n.Children[name].Kind}
	}
	return children, nil
}

func (g *group) Close() error { return nil }

type dataset struct {
	attrs
	path string
}

func (d *dataset) Path() string { return d.path }

func (d *dataset) Size() int { return len(d.n.Data) }

func (d *dataset) WriteRaw(data []byte) error {
	if err := d.f.checkWritable(); err != nil {
		return err
	}
	if len(data) != len(d.n.Data) {
		return fmt.Errorf("dataset %q holds %d bytes, got %d", d.path, len(d.n.Data), len(data))
	}
	copy(d.n.Data, data)
	return nil
}

func (d *dataset) ReadRaw() ([]byte, error) {
	if err := d.f.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]byte, len(d.n.Data))
	copy(out, d.n.Data)
	return out, nil
}

func (d *dataset) Close() error { return nil }

func joinRelative(base, relative string) string {
	path := base
	for _, element := range container.SplitPath(relative) {
		path = container.JoinPath(path, element)
	}
	return path
}
