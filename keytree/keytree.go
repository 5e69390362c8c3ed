// Package keytree implements the nested translation catalog of one locale.
//
// A Tree maps labels to either a leaf string or another Tree:
//
//	common:
//	  save: Opslaan
//	checkout:
//	  firstName: Voornaam
//
// The flat form joins labels with dots ("common.save"). Flatten and
// Unflatten convert between the two; Unflatten refuses to build a tree in
// which one key would be both a leaf and the prefix of another key.
//
// Label insertion order is preserved so a catalog read from disk is written
// back in the same order.
//
// An empty subtree has no leaves, so Flatten cannot represent it and
// Unflatten(Flatten(t)) equals t only for trees without empty subtrees.
// Compact removes them; the catalog decoders call it on every load.
package keytree

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bloomdesk/catalogkit/catalogerr"
)

// Separator joins labels into a flat key.
const Separator = "."

// ---------------------------------------------------------------------------
// Tree model
// ---------------------------------------------------------------------------

// Tree is one level of a nested catalog.
type Tree struct {
	// labels preserves insertion order.
	labels []string
	nodes  map[string]*node
}

// node is either a leaf (child == nil) or a subtree.
type node struct {
	value string
	child *Tree
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{nodes: make(map[string]*node)}
}

// Len returns the number of direct children.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.labels)
}

// Labels returns the direct child labels in insertion order.
func (t *Tree) Labels() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Set stores a leaf value under label, replacing whatever was there.
func (t *Tree) Set(label, value string) {
	t.put(label, &node{value: value})
}

// SetTree stores child under label, replacing whatever was there.
func (t *Tree) SetTree(label string, child *Tree) {
	if child == nil {
		child = New()
	}
	t.put(label, &node{child: child})
}

func (t *Tree) put(label string, n *node) {
	if t.nodes == nil {
		t.nodes = make(map[string]*node)
	}
	if _, ok := t.nodes[label]; !ok {
		t.labels = append(t.labels, label)
	}
	t.nodes[label] = n
}

// Leaf returns the leaf value stored directly under label.
func (t *Tree) Leaf(label string) (string, bool) {
	if t == nil {
		return "", false
	}
	n, ok := t.nodes[label]
	if !ok || n.child != nil {
		return "", false
	}
	return n.value, true
}

// Child returns the subtree stored directly under label.
func (t *Tree) Child(label string) (*Tree, bool) {
	if t == nil {
		return nil, false
	}
	n, ok := t.nodes[label]
	if !ok || n.child == nil {
		return nil, false
	}
	return n.child, true
}

// Lookup resolves a flat key to its leaf value.
func (t *Tree) Lookup(path string) (string, bool) {
	segs := strings.Split(path, Separator)
	cur := t
	for i, seg := range segs {
		if cur == nil {
			return "", false
		}
		n, ok := cur.nodes[seg]
		if !ok {
			return "", false
		}
		if i == len(segs)-1 {
			if n.child != nil {
				return "", false
			}
			return n.value, true
		}
		cur = n.child
	}
	return "", false
}

// Clone returns a deep copy of t.
func (t *Tree) Clone() *Tree {
	out := New()
	if t == nil {
		return out
	}
	for _, label := range t.labels {
		n := t.nodes[label]
		if n.child != nil {
			out.SetTree(label, n.child.Clone())
		} else {
			out.Set(label, n.value)
		}
	}
	return out
}

// Equal reports whether a and b hold the same labels, shape and values.
// Label order is not significant.
func Equal(a, b *Tree) bool {
	if a.Len() != b.Len() {
		return false
	}
	if a == nil || b == nil {
		return true
	}
	for label, an := range a.nodes {
		bn, ok := b.nodes[label]
		if !ok {
			return false
		}
		if (an.child == nil) != (bn.child == nil) {
			return false
		}
		if an.child == nil {
			if an.value != bn.value {
				return false
			}
			continue
		}
		if !Equal(an.child, bn.child) {
			return false
		}
	}
	return true
}

// Compact removes every subtree that holds no leaf, at any depth. It
// returns the number of labels removed.
func (t *Tree) Compact() int {
	if t == nil {
		return 0
	}
	removed := 0
	for _, label := range t.Labels() {
		n := t.nodes[label]
		if n.child == nil {
			continue
		}
		removed += n.child.Compact()
		if n.child.Len() == 0 {
			t.remove(label)
			removed++
		}
	}
	return removed
}

// Walk visits every leaf depth-first in label order.
func (t *Tree) Walk(fn func(path, value string)) {
	t.walk("", fn)
}

func (t *Tree) walk(prefix string, fn func(path, value string)) {
	if t == nil {
		return
	}
	for _, label := range t.labels {
		n := t.nodes[label]
		path := label
		if prefix != "" {
			path = prefix + Separator + label
		}
		if n.child != nil {
			n.child.walk(path, fn)
			continue
		}
		fn(path, n.value)
	}
}

// ---------------------------------------------------------------------------
// Flatten / Unflatten
// ---------------------------------------------------------------------------

// Flatten returns every leaf keyed by its flat path.
func Flatten(t *Tree) map[string]string {
	out := make(map[string]string)
	t.Walk(func(path, value string) {
		out[path] = value
	})
	return out
}

// Keys returns the sorted flat keys of t.
func Keys(t *Tree) []string {
	var keys []string
	t.Walk(func(path, _ string) {
		keys = append(keys, path)
	})
	sort.Strings(keys)
	return keys
}

// Count returns the number of leaves in t.
func Count(t *Tree) int {
	n := 0
	t.Walk(func(string, string) { n++ })
	return n
}

// Unflatten builds a tree from flat keys. Paths are inserted in sorted order
// so the result does not depend on map iteration. A key that is both a leaf
// and a prefix of another key fails with a PathConflict naming the longer key.
func Unflatten(flat map[string]string) (*Tree, error) {
	t := New()
	for _, path := range sortedKeys(flat) {
		if err := t.insert(path, flat[path]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Merge applies updates onto t. Each update is applied independently: one
// that conflicts with the existing shape is skipped and reported, the rest
// are still applied. Leaves whose key is not in updates are never touched.
// applied lists the keys that were written, in sorted order.
func (t *Tree) Merge(updates map[string]string) (applied []string, err error) {
	var errs []error
	for _, path := range sortedKeys(updates) {
		if ierr := t.insert(path, updates[path]); ierr != nil {
			errs = append(errs, ierr)
			continue
		}
		applied = append(applied, path)
	}
	return applied, errors.Join(errs...)
}

// Delete removes the leaf at path and prunes parents left empty.
func (t *Tree) Delete(path string) bool {
	segs, err := SplitKey(path)
	if err != nil {
		return false
	}
	return t.delete(segs)
}

func (t *Tree) delete(segs []string) bool {
	if t == nil {
		return false
	}
	n, ok := t.nodes[segs[0]]
	if !ok {
		return false
	}
	if len(segs) == 1 {
		if n.child != nil {
			return false
		}
		t.remove(segs[0])
		return true
	}
	if n.child == nil || !n.child.delete(segs[1:]) {
		return false
	}
	if n.child.Len() == 0 {
		t.remove(segs[0])
	}
	return true
}

func (t *Tree) remove(label string) {
	delete(t.nodes, label)
	for i, l := range t.labels {
		if l == label {
			t.labels = append(t.labels[:i], t.labels[i+1:]...)
			break
		}
	}
}

// insert writes value at path, creating intermediate trees. It never turns a
// leaf into a subtree or a subtree into a leaf.
func (t *Tree) insert(path, value string) error {
	segs, err := SplitKey(path)
	if err != nil {
		return err
	}
	cur := t
	for _, seg := range segs[:len(segs)-1] {
		n, ok := cur.nodes[seg]
		switch {
		case !ok:
			child := New()
			cur.SetTree(seg, child)
			cur = child
		case n.child == nil:
			return catalogerr.Conflict(path)
		default:
			cur = n.child
		}
	}
	last := segs[len(segs)-1]
	if n, ok := cur.nodes[last]; ok && n.child != nil {
		return catalogerr.Conflict(path)
	}
	cur.Set(last, value)
	return nil
}

// SplitKey splits a flat key into labels, rejecting empty segments.
func SplitKey(path string) ([]string, error) {
	if path == "" {
		return nil, catalogerr.New(catalogerr.InvalidKey, path, "empty key")
	}
	segs := strings.Split(path, Separator)
	for _, s := range segs {
		if s == "" {
			return nil, catalogerr.New(catalogerr.InvalidKey, path, "empty segment")
		}
	}
	return segs, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---------------------------------------------------------------------------
// Generic documents
// ---------------------------------------------------------------------------

// FromMap converts a decoded generic document into a tree. Only strings and
// nested maps are valid; arrays and other scalars fail with MalformedCatalog.
// Map iteration order is not stable, so labels are inserted sorted.
func FromMap(m map[string]any) (*Tree, error) {
	return fromMap("", m)
}

func fromMap(prefix string, m map[string]any) (*Tree, error) {
	t := New()
	labels := make([]string, 0, len(m))
	for k := range m {
		labels = append(labels, k)
	}
	sort.Strings(labels)

	for _, label := range labels {
		path := label
		if prefix != "" {
			path = prefix + Separator + label
		}
		if label == "" || strings.Contains(label, Separator) {
			return nil, catalogerr.Malformed(path, "label must be non-empty and contain no %q", Separator)
		}
		switch v := m[label].(type) {
		case string:
			t.Set(label, v)
		case map[string]any:
			child, err := fromMap(path, v)
			if err != nil {
				return nil, err
			}
			t.SetTree(label, child)
		case map[any]any:
			conv := make(map[string]any, len(v))
			for k, item := range v {
				ks, ok := k.(string)
				if !ok {
					return nil, catalogerr.Malformed(path, "non-string label %v", k)
				}
				conv[ks] = item
			}
			child, err := fromMap(path, conv)
			if err != nil {
				return nil, err
			}
			t.SetTree(label, child)
		case []any:
			return nil, catalogerr.Malformed(path, "arrays are not valid catalog values")
		default:
			return nil, catalogerr.Malformed(path, "leaf must be a string, got %s", typeName(v))
		}
	}
	return t, nil
}

// ToMap converts t into nested map[string]any for generic encoders.
func (t *Tree) ToMap() map[string]any {
	out := make(map[string]any, t.Len())
	if t == nil {
		return out
	}
	for _, label := range t.labels {
		n := t.nodes[label]
		if n.child != nil {
			out[label] = n.child.ToMap()
		} else {
			out[label] = n.value
		}
	}
	return out
}

func typeName(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
