package branch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/alexandria/internal/address"
)

// Step is one leaf in reading order with the headings to show before it.
// Placeholder leaves have a zero Leaf and no headings.
type Step struct {
	Index    int             `json:"index"`
	Leaf     address.Address `json:"leaf"`
	Headings []Entry         `json:"headings"`
}

// Plan computes a Step for every entry of a flattened leaf list. Each leaf is
// diffed against the nearest loaded leaf before it; the diffs run
// concurrently, at most limit at a time (limit <= 0 means no bound).
func Plan(ctx context.Context, tree Tree, leaves []address.Address, limit int) ([]Step, error) {
	steps := make([]Step, len(leaves))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, leaf := range leaves {
		steps[i] = Step{Index: i, Leaf: leaf, Headings: []Entry{}}
		if leaf.IsZero() {
			continue
		}
		prev, _ := PreviousLeaf(leaves, i)
		g.Go(func() error {
			headings, err := Diff(gctx, tree, prev, leaf)
			if err != nil {
				return err
			}
			steps[i].Headings = headings
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return steps, nil
}
