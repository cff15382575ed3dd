package branch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/alexandria/internal/address"
)

var errMissing = errors.New("missing")

// fakeTree maps a leaf to its hierarchy, root first.
type fakeTree struct {
	paths map[address.Address][]address.Address
	calls atomic.Int32
}

func newFakeTree(paths map[address.Address][]address.Address) *fakeTree {
	return &fakeTree{paths: paths}
}

func (f *fakeTree) GetHierarchy(_ context.Context, addr address.Address) ([]address.Address, error) {
	f.calls.Add(1)
	h, ok := f.paths[addr]
	if !ok {
		return nil, fmt.Errorf("%s: %w", addr, errMissing)
	}
	return h, nil
}

func path(ids ...string) []address.Address {
	out := make([]address.Address, len(ids))
	for i, id := range ids {
		out[i] = address.Address(id)
	}
	return out
}

func TestDiff_SiblingLeavesShareAllAncestors(t *testing.T) {
	tree := newFakeTree(map[address.Address][]address.Address{
		"C": path("A", "B", "C"),
		"D": path("A", "B", "D"),
	})

	got, err := Diff(context.Background(), tree, "C", "D")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDiff_DeeperBranchAfterShallowLeaf(t *testing.T) {
	tree := newFakeTree(map[address.Address][]address.Address{
		"B": path("A", "B"),
		"Z": path("A", "X", "Y", "Z"),
	})

	got, err := Diff(context.Background(), tree, "B", "Z")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Address: "X", Depth: 1}, {Address: "Y", Depth: 2}}, got)
}

func TestDiff_NoPreviousReturnsAllAncestors(t *testing.T) {
	tree := newFakeTree(map[address.Address][]address.Address{
		"Q": path("P", "Q"),
	})

	got, err := Diff(context.Background(), tree, "", "Q")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Address: "P", Depth: 0}}, got)
	assert.EqualValues(t, 1, tree.calls.Load(), "previous hierarchy must not be fetched")
}

func TestDiff_NoPreviousDeepPath(t *testing.T) {
	tree := newFakeTree(map[address.Address][]address.Address{
		"E": path("A", "B", "C", "D", "E"),
	})

	got, err := Diff(context.Background(), tree, "", "E")
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, e := range got {
		assert.Equal(t, i, e.Depth)
		assert.Equal(t, path("A", "B", "C", "D")[i], e.Address)
	}
}

func TestDiff_SameLeafIsEmpty(t *testing.T) {
	tree := newFakeTree(map[address.Address][]address.Address{
		"L": path("R", "S", "L"),
	})

	got, err := Diff(context.Background(), tree, "L", "L")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDiff_PreviousDeeperThanCurrent(t *testing.T) {
	tree := newFakeTree(map[address.Address][]address.Address{
		"deep": path("A", "B", "C", "deep"),
		"next": path("A", "next"),
	})

	got, err := Diff(context.Background(), tree, "deep", "next")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDiff_PreviousIsPrefixOfCurrent(t *testing.T) {
	// The previous "leaf" is an ancestor of the current one.
	tree := newFakeTree(map[address.Address][]address.Address{
		"B": path("A", "B"),
		"D": path("A", "B", "C", "D"),
	})

	got, err := Diff(context.Background(), tree, "B", "D")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Address: "C", Depth: 2}}, got)
}

func TestDiff_SharedPrefixLength(t *testing.T) {
	// For a shared prefix of length k, len(current)-1-k entries starting at depth k.
	tree := newFakeTree(map[address.Address][]address.Address{
		"p0": path("r", "x1", "x2", "p0"),
		"c0": path("r", "y1", "y2", "y3", "c0"),
		"p1": path("r", "a", "b", "p1"),
		"c1": path("r", "a", "c", "d", "c1"),
	})

	tests := []struct {
		prev, cur address.Address
		k         int
	}{
		{"p0", "c0", 1},
		{"p1", "c1", 2},
	}
	for _, tt := range tests {
		got, err := Diff(context.Background(), tree, tt.prev, tt.cur)
		require.NoError(t, err)
		cur := tree.paths[tt.cur]
		require.Len(t, got, len(cur)-1-tt.k)
		assert.Equal(t, tt.k, got[0].Depth)
	}
}

func TestDiff_Idempotent(t *testing.T) {
	tree := newFakeTree(map[address.Address][]address.Address{
		"B": path("A", "B"),
		"Z": path("A", "X", "Y", "Z"),
	})

	first, err := Diff(context.Background(), tree, "B", "Z")
	require.NoError(t, err)
	second, err := Diff(context.Background(), tree, "B", "Z")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDiff_EmptyHierarchyIsZeroDepth(t *testing.T) {
	tree := newFakeTree(map[address.Address][]address.Address{
		"empty": {},
		"B":     path("A", "B"),
	})

	got, err := Diff(context.Background(), tree, "B", "empty")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Diff(context.Background(), tree, "", "empty")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Diff(context.Background(), tree, "empty", "B")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Address: "A", Depth: 0}}, got)
}

func TestDiff_UnknownCurrent(t *testing.T) {
	tree := newFakeTree(nil)

	_, err := Diff(context.Background(), tree, "", "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.ErrorIs(t, err, errMissing)

	var re *ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, address.Address("ghost"), re.Address)
}

func TestDiff_UnknownPrevious(t *testing.T) {
	tree := newFakeTree(map[address.Address][]address.Address{
		"B": path("A", "B"),
	})

	_, err := Diff(context.Background(), tree, "ghost", "B")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	var re *ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, address.Address("ghost"), re.Address)
}

func TestPreviousLeaf(t *testing.T) {
	leaves := path("a", "", "", "d", "")

	tests := []struct {
		index int
		want  address.Address
		ok    bool
	}{
		{0, "", false},
		{1, "a", true},
		{3, "a", true},
		{4, "d", true},
		{5, "d", true},
		{99, "d", true},
	}
	for _, tt := range tests {
		got, ok := PreviousLeaf(leaves, tt.index)
		assert.Equal(t, tt.ok, ok, "index %d", tt.index)
		assert.Equal(t, tt.want, got, "index %d", tt.index)
	}
}

func TestPreviousLeaf_AllPlaceholders(t *testing.T) {
	_, ok := PreviousLeaf(path("", "", ""), 3)
	assert.False(t, ok)

	_, ok = PreviousLeaf(nil, 0)
	assert.False(t, ok)
}
