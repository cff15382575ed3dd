// Package branch decides which ancestor headings a reader must see again when
// moving from one leaf of a publication to the next.
//
// A hierarchy is the root-first chain of addresses ending at a leaf. Two
// consecutive leaves share a prefix of that chain; only the ancestors after
// the point where the chains diverge start a new heading boundary. The leaf
// itself is never part of the result, the caller renders it separately.
package branch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgallion1/alexandria/internal/address"
)

// ErrNodeNotFound is matched by every error Diff returns when the tree could
// not resolve a hierarchy.
var ErrNodeNotFound = errors.New("node not found")

// Tree resolves the root-first ancestor chain of an address, the address
// itself last.
type Tree interface {
	GetHierarchy(ctx context.Context, addr address.Address) ([]address.Address, error)
}

// Entry is an ancestor whose heading starts a new boundary, at its depth in
// the hierarchy (root is 0).
type Entry struct {
	Address address.Address `json:"address"`
	Depth   int             `json:"depth"`
}

// ResolveError reports the address a hierarchy lookup failed for. It matches
// both ErrNodeNotFound and the collaborator's own error.
type ResolveError struct {
	Address address.Address
	Err     error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve hierarchy for %s: %v", e.Address, e.Err)
}

func (e *ResolveError) Unwrap() []error {
	return []error{ErrNodeNotFound, e.Err}
}

// Diff returns the ancestors of current that were not ancestors of previous,
// shallowest first. A zero previous means current is the first leaf read, so
// all of its ancestors are new.
func Diff(ctx context.Context, tree Tree, previous, current address.Address) ([]Entry, error) {
	cur, err := hierarchy(ctx, tree, current)
	if err != nil {
		return nil, err
	}
	if previous.IsZero() {
		return entriesFrom(cur, 0), nil
	}

	prev, err := hierarchy(ctx, tree, previous)
	if err != nil {
		return nil, err
	}

	n := min(len(cur), len(prev))
	diverging := 0
	for diverging < n && cur[diverging] == prev[diverging] {
		diverging++
	}
	return entriesFrom(cur, diverging), nil
}

// entriesFrom pairs h[from:len(h)-1] with their indexes. The last element is
// the leaf and is excluded.
func entriesFrom(h []address.Address, from int) []Entry {
	out := make([]Entry, 0, max(len(h)-1-from, 0))
	for i := from; i < len(h)-1; i++ {
		out = append(out, Entry{Address: h[i], Depth: i})
	}
	return out
}

func hierarchy(ctx context.Context, tree Tree, addr address.Address) ([]address.Address, error) {
	h, err := tree.GetHierarchy(ctx, addr)
	if err != nil {
		return nil, &ResolveError{Address: addr, Err: err}
	}
	return h, nil
}

// PreviousLeaf scans leaves backwards from index-1 and returns the nearest
// non-zero entry. Zero entries are placeholders for leaves that could not be
// loaded. It reports false when the start of the list is reached.
func PreviousLeaf(leaves []address.Address, index int) (address.Address, bool) {
	if index > len(leaves) {
		index = len(leaves)
	}
	for i := index - 1; i >= 0; i-- {
		if !leaves[i].IsZero() {
			return leaves[i], true
		}
	}
	return "", false
}
