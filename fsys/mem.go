package fsys

import (
	"io/fs"
	"path"
	"slices"
	"sort"
	"sync"
)

// OpKind names a mutating or reading call on Mem.
type OpKind string

const (
	OpRead   OpKind = "read"
	OpWrite  OpKind = "write"
	OpRename OpKind = "rename"
	OpRemove OpKind = "remove"
	OpMkdir  OpKind = "mkdir"
)

// Op is one journaled call. For renames, Path is the destination and From
// the source.
type Op struct {
	Kind OpKind
	Path string
	From string
}

type fault struct {
	kind OpKind
	path string
	err  error
}

// Mem is an in-memory FS that journals every call and can be told to fail
// specific operations. Paths are cleaned with path.Clean. Safe for
// concurrent use.
type Mem struct {
	mu     sync.Mutex
	files  map[string][]byte
	ops    []Op
	faults []fault
}

func NewMem() *Mem {
	return &Mem{files: make(map[string][]byte)}
}

// FailOn makes the next calls of kind on p (any path when p is "") return
// err until Heal is called.
func (m *Mem) FailOn(kind OpKind, p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p != "" {
		p = path.Clean(p)
	}
	m.faults = append(m.faults, fault{kind: kind, path: p, err: err})
}

// Heal clears every injected fault.
func (m *Mem) Heal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = nil
}

// Ops returns a copy of the journal.
func (m *Mem) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ops)
}

// ResetOps empties the journal.
func (m *Mem) ResetOps() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = nil
}

// Files returns the sorted names of all stored files.
func (m *Mem) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Put stores data directly, bypassing the journal. Tests use it to plant
// corrupted files.
func (m *Mem) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path.Clean(name)] = slices.Clone(data)
}

func (m *Mem) failure(kind OpKind, p string) error {
	for _, f := range m.faults {
		if f.kind == kind && (f.path == "" || f.path == p) {
			return f.err
		}
	}
	return nil
}

func notExist(op, name string) error {
	return &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
}

func (m *Mem) Exists(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path.Clean(name)]
	return ok, nil
}

func (m *Mem) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(name)
	m.ops = append(m.ops, Op{Kind: OpRead, Path: name})
	if err := m.failure(OpRead, name); err != nil {
		return nil, err
	}
	data, ok := m.files[name]
	if !ok {
		return nil, notExist("open", name)
	}
	return slices.Clone(data), nil
}

func (m *Mem) WriteFile(name string, data []byte, _ fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(name)
	m.ops = append(m.ops, Op{Kind: OpWrite, Path: name})
	if err := m.failure(OpWrite, name); err != nil {
		return err
	}
	m.files[name] = slices.Clone(data)
	return nil
}

func (m *Mem) Rename(oldpath, newpath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldpath, newpath = path.Clean(oldpath), path.Clean(newpath)
	m.ops = append(m.ops, Op{Kind: OpRename, Path: newpath, From: oldpath})
	if err := m.failure(OpRename, newpath); err != nil {
		return err
	}
	data, ok := m.files[oldpath]
	if !ok {
		return notExist("rename", oldpath)
	}
	m.files[newpath] = data
	delete(m.files, oldpath)
	return nil
}

func (m *Mem) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = path.Clean(name)
	m.ops = append(m.ops, Op{Kind: OpRemove, Path: name})
	if err := m.failure(OpRemove, name); err != nil {
		return err
	}
	if _, ok := m.files[name]; !ok {
		return notExist("remove", name)
	}
	delete(m.files, name)
	return nil
}

// MkdirAll is journaled but directories are implicit.
func (m *Mem) MkdirAll(p string, _ fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	m.ops = append(m.ops, Op{Kind: OpMkdir, Path: p})
	return m.failure(OpMkdir, p)
}

var _ FS = (*Mem)(nil)
