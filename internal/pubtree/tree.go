// Package pubtree loads a publication's index events into an in-memory tree
// and answers ancestry questions about it.
package pubtree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/alexandria/internal/address"
	"github.com/dgallion1/alexandria/internal/event"
	"github.com/dgallion1/alexandria/internal/eventstore"
)

// ErrNodeNotFound is returned for addresses that are not part of the tree or
// whose event cannot be resolved.
var ErrNodeNotFound = errors.New("node not found")

// Source resolves events by address. Missing events are reported with an
// error matching eventstore.ErrNotFound.
type Source interface {
	Get(ctx context.Context, addr address.Address) (*event.Event, error)
}

// Option configures a Tree.
type Option func(*Tree)

// WithFetchLimit bounds concurrent source fetches during Load.
func WithFetchLimit(n int) Option {
	return func(t *Tree) { t.fetchLimit = n }
}

// WithLogger sets the logger used for unresolved children.
func WithLogger(log *slog.Logger) Option {
	return func(t *Tree) { t.log = log }
}

// Tree is a publication rooted at one index event. It is safe for concurrent
// use once Load has returned.
type Tree struct {
	root       address.Address
	source     Source
	log        *slog.Logger
	fetchLimit int

	mu       sync.RWMutex
	events   map[address.Address]*event.Event
	parent   map[address.Address]address.Address
	children map[address.Address][]address.Address
	leaves   []address.Address
	missing  map[address.Address]bool
}

func New(root address.Address, source Source, opts ...Option) *Tree {
	t := &Tree{
		root:       root,
		source:     source,
		log:        slog.New(slog.DiscardHandler),
		fetchLimit: 8,
		events:     make(map[address.Address]*event.Event),
		parent:     make(map[address.Address]address.Address),
		children:   make(map[address.Address][]address.Address),
		missing:    make(map[address.Address]bool),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Load walks the publication breadth-first from the root. Each level's
// children are fetched concurrently. A child that cannot be fetched, or whose
// "a" tag is not a valid address, is kept in place as a zero entry in Leaves;
// a missing root fails the load. An address reached twice is attached only
// under its first parent.
func (t *Tree) Load(ctx context.Context) error {
	rootEv, err := t.fetch(ctx, t.root)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.events[t.root] = rootEv
	seen := map[address.Address]bool{t.root: true}
	level := []address.Address{t.root}

	for len(level) > 0 {
		// Attach this level's children in order, skipping repeats.
		var next []address.Address
		for _, p := range level {
			ev := t.events[p]
			for _, c := range ev.ChildAddresses() {
				if seen[c] {
					t.log.Warn("skipping repeated child", "parent", p, "child", c)
					continue
				}
				seen[c] = true
				t.parent[c] = p
				t.children[p] = append(t.children[p], c)
				if _, err := address.Parse(string(c)); err != nil {
					t.log.Warn("invalid publication child", "parent", p, "child", c, "error", err)
					t.missing[c] = true
					continue
				}
				next = append(next, c)
			}
		}

		fetched, err := t.fetchAll(ctx, next)
		if err != nil {
			return err
		}

		level = level[:0:0]
		for i, c := range next {
			if fetched[i] == nil {
				t.missing[c] = true
				continue
			}
			t.events[c] = fetched[i]
			if fetched[i].IsIndex() {
				level = append(level, c)
			}
		}
	}

	t.leaves = t.collectLeaves(t.root, nil)
	return nil
}

// fetchAll resolves addrs concurrently. Missing events and addresses the
// source rejects come back as nil entries; any other error aborts.
func (t *Tree) fetchAll(ctx context.Context, addrs []address.Address) ([]*event.Event, error) {
	out := make([]*event.Event, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	if t.fetchLimit > 0 {
		g.SetLimit(t.fetchLimit)
	}
	for i, a := range addrs {
		g.Go(func() error {
			ev, err := t.source.Get(gctx, a)
			if errors.Is(err, eventstore.ErrNotFound) || errors.Is(err, address.ErrInvalid) {
				t.log.Warn("unresolved publication child", "address", a, "error", err)
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch %s: %w", a, err)
			}
			out[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Tree) fetch(ctx context.Context, addr address.Address) (*event.Event, error) {
	ev, err := t.source.Get(ctx, addr)
	if errors.Is(err, eventstore.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", addr, ErrNodeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", addr, err)
	}
	return ev, nil
}

// collectLeaves lists the tree's leaves depth-first in reading order. A
// missing node is a zero placeholder. An index with no children is not a
// leaf; it contributes nothing.
func (t *Tree) collectLeaves(addr address.Address, out []address.Address) []address.Address {
	if t.missing[addr] {
		return append(out, "")
	}
	ev := t.events[addr]
	if !ev.IsIndex() {
		return append(out, addr)
	}
	for _, c := range t.children[addr] {
		out = t.collectLeaves(c, out)
	}
	return out
}

// Root returns the root address.
func (t *Tree) Root() address.Address {
	return t.root
}

// GetEvent returns the event at addr. Addresses outside the loaded tree are
// looked up in the source.
func (t *Tree) GetEvent(ctx context.Context, addr address.Address) (*event.Event, error) {
	t.mu.RLock()
	ev, ok := t.events[addr]
	missing := t.missing[addr]
	t.mu.RUnlock()
	if ok {
		return ev, nil
	}
	if missing {
		return nil, fmt.Errorf("%s: %w", addr, ErrNodeNotFound)
	}
	return t.fetch(ctx, addr)
}

// GetHierarchy returns the chain of addresses from the root to addr,
// inclusive. It is rebuilt from parent links on every call.
func (t *Tree) GetHierarchy(ctx context.Context, addr address.Address) ([]address.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	if addr != t.root {
		if _, ok := t.parent[addr]; !ok {
			return nil, fmt.Errorf("%s: %w", addr, ErrNodeNotFound)
		}
	}
	var chain []address.Address
	for cur := addr; ; {
		chain = append(chain, cur)
		p, ok := t.parent[cur]
		if !ok {
			break
		}
		cur = p
	}
	slices.Reverse(chain)
	return chain, nil
}

// Leaves returns the leaf addresses in reading order. Zero entries stand for
// children whose events could not be fetched.
func (t *Tree) Leaves() []address.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.leaves)
}

// Children returns the direct children of addr in tag order.
func (t *Tree) Children(addr address.Address) []address.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.children[addr])
}

// Depth returns the number of ancestors of addr, or -1 if it is not in the
// tree.
func (t *Tree) Depth(addr address.Address) int {
	h, err := t.GetHierarchy(context.Background(), addr)
	if err != nil {
		return -1
	}
	return len(h) - 1
}

// Addresses returns every address attached to the tree, loaded or not,
// root first.
func (t *Tree) Addresses() []address.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := []address.Address{t.root}
	var walk func(address.Address)
	walk = func(a address.Address) {
		for _, c := range t.children[a] {
			out = append(out, c)
			walk(c)
		}
	}
	walk(t.root)
	return out
}
