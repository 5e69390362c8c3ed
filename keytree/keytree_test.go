package keytree

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloomdesk/catalogkit/catalogerr"
)

func sampleTree() *Tree {
	t := New()
	common := New()
	common.Set("save", "Opslaan")
	common.Set("cancel", "Annuleren")
	t.SetTree("common", common)

	checkout := New()
	checkout.Set("firstName", "Voornaam")
	address := New()
	address.Set("street", "Straat")
	checkout.SetTree("address", address)
	t.SetTree("checkout", checkout)

	t.Set("title", "Bloemenwinkel")
	return t
}

func TestFlatten(t *testing.T) {
	got := Flatten(sampleTree())
	want := map[string]string{
		"common.save":             "Opslaan",
		"common.cancel":           "Annuleren",
		"checkout.firstName":      "Voornaam",
		"checkout.address.street": "Straat",
		"title":                   "Bloemenwinkel",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Flatten() = %#v, want %#v", got, want)
	}
}

func TestWalkPreservesInsertionOrder(t *testing.T) {
	var paths []string
	sampleTree().Walk(func(path, _ string) { paths = append(paths, path) })

	want := []string{"common.save", "common.cancel", "checkout.firstName", "checkout.address.street", "title"}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("Walk order = %v, want %v", paths, want)
	}
}

func TestUnflattenFlattenRoundTrip(t *testing.T) {
	tree := sampleTree()

	back, err := Unflatten(Flatten(tree))
	require.NoError(t, err)
	assert.True(t, Equal(tree, back), "unflatten(flatten(T)) must equal T")

	flat := map[string]string{"a.b.c": "1", "a.d": "2", "e": "3"}
	rebuilt, err := Unflatten(flat)
	require.NoError(t, err)
	assert.Equal(t, flat, Flatten(rebuilt))
}

func TestUnflattenPathConflict(t *testing.T) {
	tests := []struct {
		name string
		flat map[string]string
		path string
	}{
		{"leaf then nested", map[string]string{"a": "x", "a.b": "y"}, "a.b"},
		{"nested then shorter leaf", map[string]string{"a.b": "x", "a.b.c": "y"}, "a.b.c"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Unflatten(tc.flat)
			if !errors.Is(err, catalogerr.ErrPathConflict) {
				t.Fatalf("Unflatten() error = %v, want PathConflict", err)
			}
			var ce *catalogerr.Error
			if !errors.As(err, &ce) || ce.Path != tc.path {
				t.Fatalf("conflict path = %v, want %q", err, tc.path)
			}
		})
	}
}

func TestUnflattenInvalidKey(t *testing.T) {
	for _, key := range []string{"", "a..b", ".a", "a."} {
		_, err := Unflatten(map[string]string{key: "v"})
		if !errors.Is(err, catalogerr.ErrInvalidKey) {
			t.Fatalf("Unflatten(%q) error = %v, want InvalidKey", key, err)
		}
	}
}

func TestMergeNonDestructive(t *testing.T) {
	tree := sampleTree()
	before := Flatten(tree)

	applied, err := tree.Merge(map[string]string{
		"common.delete":   "Verwijderen",
		"orders.open":     "Open",
		"checkout.street": "Straat",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"checkout.street", "common.delete", "orders.open"}, applied)

	after := Flatten(tree)
	for k, v := range before {
		assert.Equal(t, v, after[k], "existing key %s changed", k)
	}
	assert.Equal(t, "Open", after["orders.open"])
}

func TestMergeSkipsConflictsAndContinues(t *testing.T) {
	tree := sampleTree()

	applied, err := tree.Merge(map[string]string{
		"title.sub":   "clash with leaf",
		"common":      "clash with subtree",
		"footer.link": "Bekijk alle",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalogerr.ErrPathConflict))
	assert.Equal(t, []string{"footer.link"}, applied)

	v, ok := tree.Lookup("title")
	assert.True(t, ok)
	assert.Equal(t, "Bloemenwinkel", v)
	_, ok = tree.Child("common")
	assert.True(t, ok, "subtree must survive conflicting leaf update")
}

func TestLookup(t *testing.T) {
	tree := sampleTree()
	if v, ok := tree.Lookup("checkout.address.street"); !ok || v != "Straat" {
		t.Fatalf("Lookup(street) = %q, %v", v, ok)
	}
	if _, ok := tree.Lookup("checkout.address"); ok {
		t.Fatal("Lookup on a subtree must not return a leaf")
	}
	if _, ok := tree.Lookup("title.more"); ok {
		t.Fatal("Lookup below a leaf must fail")
	}
	if _, ok := tree.Lookup("missing"); ok {
		t.Fatal("Lookup(missing) must fail")
	}
}

func TestDeletePrunesEmptyParents(t *testing.T) {
	tree := sampleTree()
	if !tree.Delete("checkout.address.street") {
		t.Fatal("Delete() = false, want true")
	}
	if _, ok := tree.Child("checkout"); !ok {
		t.Fatal("checkout still has firstName and must stay")
	}
	if _, ok := tree.Lookup("checkout.address.street"); ok {
		t.Fatal("deleted key still present")
	}
	checkout, _ := tree.Child("checkout")
	if _, ok := checkout.Child("address"); ok {
		t.Fatal("empty address subtree should be pruned")
	}
	if tree.Delete("common") {
		t.Fatal("Delete on a subtree must be refused")
	}
}

func TestFromMapRejectsArraysAndScalars(t *testing.T) {
	_, err := FromMap(map[string]any{"a": map[string]any{"b": []any{"x"}}})
	require.True(t, errors.Is(err, catalogerr.ErrMalformedCatalog))
	var ce *catalogerr.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "a.b", ce.Path)

	_, err = FromMap(map[string]any{"n": 3.0})
	assert.True(t, errors.Is(err, catalogerr.ErrMalformedCatalog))

	tree, err := FromMap(map[string]any{"common": map[string]any{"save": "Opslaan"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"common.save": "Opslaan"}, Flatten(tree))
	assert.Equal(t, map[string]any{"common": map[string]any{"save": "Opslaan"}}, tree.ToMap())
}

func TestCloneIsDeep(t *testing.T) {
	tree := sampleTree()
	cp := tree.Clone()
	_, _ = cp.Merge(map[string]string{"common.extra": "x"})
	if _, ok := tree.Lookup("common.extra"); ok {
		t.Fatal("mutating the clone leaked into the original")
	}
	if !Equal(sampleTree(), tree) {
		t.Fatal("original changed")
	}
}

func TestCompactRestoresRoundTrip(t *testing.T) {
	tree := New()
	tree.Set("save", "Opslaan")
	tree.SetTree("empty", New())
	nested := New()
	nested.SetTree("inner", New())
	tree.SetTree("nested", nested)

	back, err := Unflatten(Flatten(tree))
	require.NoError(t, err)
	assert.False(t, Equal(tree, back), "empty subtrees have no flat form")

	assert.Equal(t, 3, tree.Compact())
	assert.Equal(t, []string{"save"}, tree.Labels())
	assert.True(t, Equal(tree, back))
	assert.Equal(t, 0, tree.Compact())
}
