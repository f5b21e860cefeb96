package store

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupScalars(t *testing.T) {
	g := NewGroup()
	g.SetInt("count", 3)
	g.SetFloat("scale", 0.5)
	g.SetBool("square", true)
	g.SetString("kind", "mblbp")

	n, err := g.Int("count")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	f, err := g.Float("scale")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, f, 1e-12)

	promoted, err := g.Float("count")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, promoted, 1e-12)

	b, err := g.Bool("square")
	require.NoError(t, err)
	assert.True(t, b)

	s, err := g.String("kind")
	require.NoError(t, err)
	assert.Equal(t, "mblbp", s)

	assert.Equal(t, []string{"count", "scale", "square", "kind"}, g.Keys())
}

func TestGroupErrors(t *testing.T) {
	g := NewGroup()
	g.SetInt("count", 1)

	_, err := g.Int("missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = g.String("count")
	require.ErrorIs(t, err, ErrType)

	_, err = g.Open("count")
	require.ErrorIs(t, err, ErrType)

	_, err = g.Open("nope")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = g.Int("a/b/c")
	require.ErrorIs(t, err, ErrNotFound)

	err = g.SetArray("bad", Array{Shape: []int{2, 2}, Data: []int32{1}})
	require.Error(t, err)
	assert.False(t, g.Has("bad"))
}

func TestGroupPaths(t *testing.T) {
	g := NewGroup()
	sub, err := g.CreateGroup("extractor_0/lbp")
	require.NoError(t, err)
	sub.SetInt("neighbors", 8)

	assert.True(t, g.Has("extractor_0"))
	assert.True(t, g.Has("extractor_0/lbp/neighbors"))

	n, err := g.Int("extractor_0/lbp/neighbors")
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	again, err := g.CreateGroup("extractor_0/lbp")
	require.NoError(t, err)
	assert.Same(t, sub, again)
}

func TestArrayCopies(t *testing.T) {
	g := NewGroup()
	a := NewArray(2, 3)
	a.Set2(1, 2, 7)
	require.NoError(t, g.SetArray("offsets", a))

	a.Set2(1, 2, 99)
	got, err := g.Array("offsets")
	require.NoError(t, err)
	assert.Equal(t, int32(7), got.At2(1, 2))

	got.Set2(0, 0, 5)
	again, err := g.Array("offsets")
	require.NoError(t, err)
	assert.Equal(t, int32(0), again.At2(0, 0))
}

func TestYAMLRoundTrip(t *testing.T) {
	g := NewGroup()
	g.SetInt("number_of_extractors", 2)
	g.SetFloat("threshold", 1)
	g.SetString("name", "detector")
	patch := NewArray(2)
	patch.Data[0], patch.Data[1] = 24, 20
	require.NoError(t, g.SetArray("patch_size", patch))
	sub, err := g.CreateGroup("extractor_0")
	require.NoError(t, err)
	sub.SetBool("uniform", false)
	empty := NewArray(2, 0)
	require.NoError(t, sub.SetArray("offsets", empty))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, g))

	back, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, g.Dump(), back.Dump())
	assert.Equal(t, g.Keys(), back.Keys())

	f, err := back.Float("threshold")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, f, 1e-12)

	offsets, err := back.Array("extractor_0/offsets")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, offsets.Shape)
	assert.Empty(t, offsets.Data)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	g := NewGroup()
	g.SetInt("version", 1)
	require.NoError(t, WriteFile(path, g))

	back, err := ReadFile(path)
	require.NoError(t, err)
	v, err := back.Int("version")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDecodeRejectsBadArray(t *testing.T) {
	doc := "offsets: !int32 {shape: [2, 2], data: [1, 2, 3]}\n"
	_, err := Decode(bytes.NewBufferString(doc))
	require.ErrorIs(t, err, ErrType)
}

func TestDecodeRejectsEmptyKey(t *testing.T) {
	for _, doc := range []string{
		"\"\": 1\n",
		"\"/\": true\n",
		"a:\n  \"\": 2\n",
		"a/b:\n  c: 1\n",
		"x/y: 3\n",
	} {
		_, err := Decode(bytes.NewBufferString(doc))
		require.ErrorIs(t, err, ErrType, "document %q", doc)
	}
}

func TestDecodeDuplicateGroupKey(t *testing.T) {
	doc := "a:\n  x: 1\nb: 2\na:\n  y: 3\n"
	g, err := Decode(bytes.NewBufferString(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.Keys())
	assert.Equal(t, []string{"a/y = 3", "b = 2"}, g.Dump())

	doc = "a: 1\na:\n  y: 3\n"
	g, err = Decode(bytes.NewBufferString(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, g.Keys())
	assert.Equal(t, []string{"a/y = 3"}, g.Dump())
}

func TestDelete(t *testing.T) {
	g := NewGroup()
	g.SetInt("a/b/c", 1)
	g.SetInt("a/d", 2)
	g.SetString("e", "x")

	g.Delete("a/b")
	assert.False(t, g.Has("a/b"))
	assert.False(t, g.Has("a/b/c"))
	assert.True(t, g.Has("a/d"))

	g.Delete("e")
	assert.Equal(t, []string{"a"}, g.Keys())

	g.Delete("missing")
	g.Delete("a/missing/deeper")
	g.Delete("")
	assert.Equal(t, []string{"a/d = 2"}, g.Dump())
}
