// Package store provides a small hierarchical key/value store modelled on
// HDF5 files: named groups that hold typed scalars and int32 arrays.
// Groups are kept in memory and persisted as YAML documents.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a key or group does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrType is returned when a key exists but holds a different type.
	ErrType = errors.New("store: type mismatch")
)

// Reader is the read side of a store group.
type Reader interface {
	Has(name string) bool
	Int(name string) (int, error)
	Float(name string) (float64, error)
	Bool(name string) (bool, error)
	String(name string) (string, error)
	Array(name string) (Array, error)
	Open(name string) (Reader, error)
}

// Writer is the write side of a store group.
type Writer interface {
	Has(name string) bool
	SetInt(name string, v int)
	SetFloat(name string, v float64)
	SetBool(name string, v bool)
	SetString(name string, v string)
	SetArray(name string, a Array) error
	Create(name string) (Writer, error)
	Delete(name string)
}

// Group is an in-memory node of the store. The zero value is not usable, use NewGroup.
type Group struct {
	values map[string]any
	groups map[string]*Group
	order  []string
}

// NewGroup returns an empty root group.
func NewGroup() *Group {
	return &Group{
		values: make(map[string]any),
		groups: make(map[string]*Group),
	}
}

// Keys returns the names stored directly in this group, in insertion order.
func (g *Group) Keys() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Has reports whether name (which may be a slash separated path) exists.
func (g *Group) Has(name string) bool {
	parent, leaf, err := g.walk(name, false)
	if err != nil {
		return false
	}
	if _, ok := parent.values[leaf]; ok {
		return true
	}
	_, ok := parent.groups[leaf]
	return ok
}

// Create returns the sub group at name, creating it (and any missing parents).
func (g *Group) Create(name string) (Writer, error) {
	return g.CreateGroup(name)
}

// CreateGroup is Create returning the concrete type.
func (g *Group) CreateGroup(name string) (*Group, error) {
	parent, leaf, err := g.walk(name, true)
	if err != nil {
		return nil, err
	}
	if sub, ok := parent.groups[leaf]; ok {
		return sub, nil
	}
	if _, ok := parent.values[leaf]; ok {
		return nil, fmt.Errorf("%w: %q is a dataset, not a group", ErrType, name)
	}
	sub := NewGroup()
	parent.groups[leaf] = sub
	parent.order = append(parent.order, leaf)
	return sub, nil
}

// Open returns the existing sub group at name.
func (g *Group) Open(name string) (Reader, error) {
	return g.OpenGroup(name)
}

// OpenGroup is Open returning the concrete type.
func (g *Group) OpenGroup(name string) (*Group, error) {
	parent, leaf, err := g.walk(name, false)
	if err != nil {
		return nil, err
	}
	sub, ok := parent.groups[leaf]
	if !ok {
		if _, isValue := parent.values[leaf]; isValue {
			return nil, fmt.Errorf("%w: %q is a dataset, not a group", ErrType, name)
		}
		return nil, fmt.Errorf("%w: group %q", ErrNotFound, name)
	}
	return sub, nil
}

// SetInt stores an integer scalar.
func (g *Group) SetInt(name string, v int) { g.set(name, v) }

// SetFloat stores a float scalar.
func (g *Group) SetFloat(name string, v float64) { g.set(name, v) }

// SetBool stores a boolean scalar.
func (g *Group) SetBool(name string, v bool) { g.set(name, v) }

// SetString stores a string scalar.
func (g *Group) SetString(name string, v string) { g.set(name, v) }

// SetArray stores a copy of a.
func (g *Group) SetArray(name string, a Array) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("set %q: %w", name, err)
	}
	g.set(name, a.Clone())
	return nil
}

// Int reads an integer scalar.
func (g *Group) Int(name string) (int, error) {
	v, err := g.get(name)
	if err != nil {
		return 0, err
	}
	i, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("%w: %q holds %T, want int", ErrType, name, v)
	}
	return i, nil
}

// Float reads a float scalar. Integer values are promoted.
func (g *Group) Float(name string) (float64, error) {
	v, err := g.get(name)
	if err != nil {
		return 0, err
	}
	switch f := v.(type) {
	case float64:
		return f, nil
	case int:
		return float64(f), nil
	}
	return 0, fmt.Errorf("%w: %q holds %T, want float64", ErrType, name, v)
}

// Bool reads a boolean scalar.
func (g *Group) Bool(name string) (bool, error) {
	v, err := g.get(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q holds %T, want bool", ErrType, name, v)
	}
	return b, nil
}

// String reads a string scalar.
func (g *Group) String(name string) (string, error) {
	v, err := g.get(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q holds %T, want string", ErrType, name, v)
	}
	return s, nil
}

// Array reads a copy of an int32 array.
func (g *Group) Array(name string) (Array, error) {
	v, err := g.get(name)
	if err != nil {
		return Array{}, err
	}
	a, ok := v.(Array)
	if !ok {
		return Array{}, fmt.Errorf("%w: %q holds %T, want array", ErrType, name, v)
	}
	return a.Clone(), nil
}

func (g *Group) set(name string, v any) {
	parent, leaf, err := g.walk(name, true)
	if err != nil {
		// empty key, or a path element that is already a dataset
		panic(fmt.Sprintf("store: cannot set %q: %v", name, err))
	}
	if _, ok := parent.groups[leaf]; ok {
		delete(parent.groups, leaf)
		parent.removeOrder(leaf)
	}
	if _, ok := parent.values[leaf]; !ok {
		parent.order = append(parent.order, leaf)
	}
	parent.values[leaf] = v
}

// setGroup stores sub under a single-element key, replacing any dataset or
// group already there.
func (g *Group) setGroup(key string, sub *Group) {
	_, isGroup := g.groups[key]
	_, isValue := g.values[key]
	delete(g.values, key)
	if !isGroup && !isValue {
		g.order = append(g.order, key)
	}
	g.groups[key] = sub
}

// Delete removes the dataset or group at name. Missing names are ignored.
func (g *Group) Delete(name string) {
	parent, leaf, err := g.walk(name, false)
	if err != nil {
		return
	}
	_, isGroup := parent.groups[leaf]
	_, isValue := parent.values[leaf]
	if !isGroup && !isValue {
		return
	}
	delete(parent.groups, leaf)
	delete(parent.values, leaf)
	parent.removeOrder(leaf)
}

func (g *Group) get(name string) (any, error) {
	parent, leaf, err := g.walk(name, false)
	if err != nil {
		return nil, err
	}
	v, ok := parent.values[leaf]
	if !ok {
		if _, isGroup := parent.groups[leaf]; isGroup {
			return nil, fmt.Errorf("%w: %q is a group, not a dataset", ErrType, name)
		}
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return v, nil
}

// walk resolves all but the last element of a slash separated path.
func (g *Group) walk(name string, create bool) (*Group, string, error) {
	parts := splitPath(name)
	if len(parts) == 0 {
		return nil, "", fmt.Errorf("%w: empty key", ErrNotFound)
	}
	cur := g
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur.groups[p]
		if !ok {
			if !create {
				return nil, "", fmt.Errorf("%w: group %q in %q", ErrNotFound, p, name)
			}
			if _, isValue := cur.values[p]; isValue {
				return nil, "", fmt.Errorf("%w: %q is a dataset, not a group", ErrType, p)
			}
			next = NewGroup()
			cur.groups[p] = next
			cur.order = append(cur.order, p)
		}
		cur = next
	}
	return cur, parts[len(parts)-1], nil
}

func (g *Group) removeOrder(name string) {
	for i, k := range g.order {
		if k == name {
			g.order = append(g.order[:i], g.order[i+1:]...)
			return
		}
	}
}

func splitPath(name string) []string {
	raw := strings.Split(name, "/")
	parts := raw[:0]
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Dump returns a sorted, flattened listing of all datasets below g. Used by
// the info command and in tests.
func (g *Group) Dump() []string {
	var out []string
	g.dump("", &out)
	sort.Strings(out)
	return out
}

func (g *Group) dump(prefix string, out *[]string) {
	for _, k := range g.order {
		path := prefix + k
		if sub, ok := g.groups[k]; ok {
			sub.dump(path+"/", out)
			continue
		}
		*out = append(*out, fmt.Sprintf("%s = %v", path, g.values[k]))
	}
}
