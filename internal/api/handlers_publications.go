package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"

	"github.com/dgallion1/alexandria/internal/address"
	"github.com/dgallion1/alexandria/internal/branch"
	"github.com/dgallion1/alexandria/internal/event"
	"github.com/dgallion1/alexandria/internal/eventstore"
	"github.com/dgallion1/alexandria/internal/pubtree"
	"github.com/go-chi/chi/v5"
)

// heading is a branch entry with the title of its event.
type heading struct {
	Address address.Address `json:"address"`
	Depth   int             `json:"depth"`
	Title   string          `json:"title"`
}

type outlineStep struct {
	Index    int             `json:"index"`
	Leaf     address.Address `json:"leaf"`
	Title    string          `json:"title"`
	Headings []heading       `json:"headings"`
}

// pathAddress reads and validates an address URL parameter.
func pathAddress(r *http.Request, key string) (address.Address, error) {
	raw, err := url.PathUnescape(chi.URLParam(r, key))
	if err != nil {
		return "", address.ErrInvalid
	}
	c, err := address.Parse(raw)
	if err != nil {
		return "", err
	}
	return c.Address(), nil
}

// queryAddress reads an optional address query parameter. An absent
// parameter is the zero address.
func queryAddress(r *http.Request, key string) (address.Address, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return "", nil
	}
	c, err := address.Parse(raw)
	if err != nil {
		return "", err
	}
	return c.Address(), nil
}

// loadTree loads the publication named by the {address} parameter and
// writes the error response itself when that fails.
func (s *Server) loadTree(w http.ResponseWriter, r *http.Request) (*pubtree.Tree, bool) {
	root, err := pathAddress(r, "address")
	if err != nil {
		jsonError(w, "invalid address: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	tree := pubtree.New(root, s.store,
		pubtree.WithFetchLimit(s.cfg.MaxConcurrentFetch),
		pubtree.WithLogger(s.log.With("root", root)),
	)
	if err := tree.Load(r.Context()); err != nil {
		s.treeError(w, "load publication", err)
		return nil, false
	}
	return tree, true
}

func (s *Server) treeError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, pubtree.ErrNodeNotFound), errors.Is(err, branch.ErrNodeNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, address.ErrInvalid):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error(what+" failed", "error", err)
		jsonError(w, what+": "+err.Error(), http.StatusBadGateway)
	}
}

func (s *Server) handleLeaves(w http.ResponseWriter, r *http.Request) {
	tree, ok := s.loadTree(w, r)
	if !ok {
		return
	}
	writeJSON(w, map[string]any{
		"root":   tree.Root(),
		"leaves": tree.Leaves(),
	})
}

func (s *Server) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	leaf, err := queryAddress(r, "leaf")
	if err != nil || leaf.IsZero() {
		jsonError(w, "leaf query parameter must be a valid address", http.StatusBadRequest)
		return
	}
	tree, ok := s.loadTree(w, r)
	if !ok {
		return
	}
	h, err := tree.GetHierarchy(r.Context(), leaf)
	if err != nil {
		s.treeError(w, "hierarchy", err)
		return
	}
	writeJSON(w, map[string]any{
		"leaf":      leaf,
		"hierarchy": h,
	})
}

// handleBranches returns the headings to show when moving from previous to
// leaf. Without previous every ancestor of leaf is returned.
func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	leaf, err := queryAddress(r, "leaf")
	if err != nil || leaf.IsZero() {
		jsonError(w, "leaf query parameter must be a valid address", http.StatusBadRequest)
		return
	}
	previous, err := queryAddress(r, "previous")
	if err != nil {
		jsonError(w, "previous query parameter must be a valid address", http.StatusBadRequest)
		return
	}
	tree, ok := s.loadTree(w, r)
	if !ok {
		return
	}
	entries, err := branch.Diff(r.Context(), tree, previous, leaf)
	if err != nil {
		s.treeError(w, "branches", err)
		return
	}
	headings, err := s.titled(r.Context(), tree, entries)
	if err != nil {
		s.treeError(w, "branches", err)
		return
	}
	writeJSON(w, map[string]any{
		"previous": previous,
		"leaf":     leaf,
		"headings": headings,
	})
}

// handleOutline returns every leaf in reading order with the headings that
// open before it.
func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	tree, ok := s.loadTree(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	steps, err := branch.Plan(ctx, tree, tree.Leaves(), s.cfg.MaxConcurrentFetch)
	if err != nil {
		s.treeError(w, "outline", err)
		return
	}

	out := make([]outlineStep, 0, len(steps))
	for _, st := range steps {
		step := outlineStep{Index: st.Index, Leaf: st.Leaf}
		if !st.Leaf.IsZero() {
			if ev, err := tree.GetEvent(ctx, st.Leaf); err == nil {
				step.Title = ev.Title()
			}
		}
		if step.Headings, err = s.titled(ctx, tree, st.Headings); err != nil {
			s.treeError(w, "outline", err)
			return
		}
		out = append(out, step)
	}

	root, _ := tree.GetEvent(ctx, tree.Root())
	writeJSON(w, map[string]any{
		"root":  tree.Root(),
		"title": root.Title(),
		"steps": out,
	})
}

func (s *Server) titled(ctx context.Context, tree *pubtree.Tree, entries []branch.Entry) ([]heading, error) {
	out := make([]heading, 0, len(entries))
	for _, e := range entries {
		ev, err := tree.GetEvent(ctx, e.Address)
		if err != nil {
			return nil, err
		}
		out = append(out, heading{Address: e.Address, Depth: e.Depth, Title: ev.Title()})
	}
	return out, nil
}

// handleDeletePublication deletes every event of a publication, deepest
// first so the root goes last.
func (s *Server) handleDeletePublication(w http.ResponseWriter, r *http.Request) {
	tree, ok := s.loadTree(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	addrs := tree.Addresses()
	slices.Reverse(addrs)

	deleted, missing := 0, 0
	for _, a := range addrs {
		err := s.store.Delete(ctx, a)
		switch {
		case err == nil:
			deleted++
		case errors.Is(err, eventstore.ErrNotFound), errors.Is(err, address.ErrInvalid):
			missing++
		default:
			s.log.Error("delete failed", "address", a, "error", err)
			jsonError(w, "delete "+string(a)+": "+err.Error(), http.StatusBadGateway)
			return
		}
	}

	writeJSON(w, map[string]any{
		"root":    tree.Root(),
		"deleted": deleted,
		"missing": missing,
	})
}

// handleListPublications lists the root index events of an author: index
// events that no other index of theirs references.
func (s *Server) handleListPublications(w http.ResponseWriter, r *http.Request) {
	pubkey := r.URL.Query().Get("pubkey")
	if pubkey == "" {
		jsonError(w, "pubkey query parameter is required", http.StatusBadRequest)
		return
	}
	events, err := s.store.List(r.Context(), pubkey)
	if err != nil {
		jsonError(w, "failed to list events: "+err.Error(), http.StatusBadGateway)
		return
	}

	referenced := map[address.Address]bool{}
	for _, ev := range events {
		for _, c := range ev.ChildAddresses() {
			referenced[c] = true
		}
	}
	pubs := []map[string]any{}
	for _, ev := range events {
		if !ev.IsIndex() || referenced[ev.Address()] {
			continue
		}
		pubs = append(pubs, map[string]any{
			"address":      ev.Address(),
			"title":        ev.Title(),
			"created_at":   ev.CreatedAt,
			"content_hash": ev.TagValue("x"),
		})
	}
	writeJSON(w, map[string]any{"publications": pubs})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		jsonError(w, "invalid address: "+err.Error(), http.StatusBadRequest)
		return
	}
	ev, err := s.store.Get(r.Context(), addr)
	if errors.Is(err, eventstore.ErrNotFound) {
		jsonError(w, "event not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to get event: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, struct {
		*event.Event
		Address address.Address `json:"address"`
	}{ev, ev.Address()})
}
