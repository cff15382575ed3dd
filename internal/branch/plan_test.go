package branch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/alexandria/internal/address"
)

func TestPlan_ReadingOrder(t *testing.T) {
	// book
	// ├── ch1
	// │   ├── s1
	// │   └── s2
	// └── ch2
	//     └── part
	//         └── s3
	tree := newFakeTree(map[address.Address][]address.Address{
		"s1": path("book", "ch1", "s1"),
		"s2": path("book", "ch1", "s2"),
		"s3": path("book", "ch2", "part", "s3"),
	})

	steps, err := Plan(context.Background(), tree, path("s1", "s2", "s3"), 2)
	require.NoError(t, err)
	require.Len(t, steps, 3)

	assert.Equal(t, []Entry{{"book", 0}, {"ch1", 1}}, steps[0].Headings)
	assert.Empty(t, steps[1].Headings)
	assert.Equal(t, []Entry{{"ch2", 1}, {"part", 2}}, steps[2].Headings)

	for i, s := range steps {
		assert.Equal(t, i, s.Index)
	}
}

func TestPlan_SkipsPlaceholders(t *testing.T) {
	tree := newFakeTree(map[address.Address][]address.Address{
		"s1": path("book", "ch1", "s1"),
		"s3": path("book", "ch1", "s3"),
	})

	steps, err := Plan(context.Background(), tree, path("s1", "", "s3"), 0)
	require.NoError(t, err)
	require.Len(t, steps, 3)

	assert.True(t, steps[1].Leaf.IsZero())
	assert.NotNil(t, steps[1].Headings)
	assert.Empty(t, steps[1].Headings)
	// s3 is diffed against s1, not against the placeholder.
	assert.Empty(t, steps[2].Headings)
}

func TestPlan_LeadingPlaceholder(t *testing.T) {
	tree := newFakeTree(map[address.Address][]address.Address{
		"s2": path("book", "s2"),
	})

	steps, err := Plan(context.Background(), tree, path("", "s2"), 0)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"book", 0}}, steps[1].Headings)
}

func TestPlan_PropagatesResolveError(t *testing.T) {
	tree := newFakeTree(map[address.Address][]address.Address{
		"s1": path("book", "s1"),
	})

	_, err := Plan(context.Background(), tree, path("s1", "ghost"), 1)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestPlan_Empty(t *testing.T) {
	steps, err := Plan(context.Background(), newFakeTree(nil), nil, 4)
	require.NoError(t, err)
	assert.Empty(t, steps)
}
