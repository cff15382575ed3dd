// Package publish splits a parsed document into publication events: an index
// event for the document and for every heading that has subsections, and a
// section event for every block of content.
package publish

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgallion1/alexandria/internal/address"
	"github.com/dgallion1/alexandria/internal/doctree"
	"github.com/dgallion1/alexandria/internal/event"
)

const DefaultMaxSectionTokens = 2000

var ErrEmptyDocument = errors.New("document has no content")

// Options controls event generation.
type Options struct {
	Pubkey           string    // Author of every event. Required.
	CreatedAt        time.Time // Defaults to now.
	MaxSectionTokens int       // Content above this is split across sections.
	ContentHash      string    // Stored on the root as an "x" tag when set.
}

// Publication is the result of Split. Events are ordered so that every
// event comes after the events it references; the root is last.
type Publication struct {
	Root   address.Address
	Title  string
	Events []*event.Event
}

// Sections counts the content events.
func (p *Publication) Sections() int {
	n := 0
	for _, ev := range p.Events {
		if ev.Kind == event.KindSection {
			n++
		}
	}
	return n
}

type splitter struct {
	opts      Options
	createdAt int64
	used      map[string]int
	events    []*event.Event
}

// Split converts tree into a publication.
func Split(tree *doctree.DocTree, opts Options) (*Publication, error) {
	if opts.Pubkey == "" {
		return nil, errors.New("publish: pubkey is required")
	}
	if len(tree.Children) == 0 {
		return nil, ErrEmptyDocument
	}
	if opts.MaxSectionTokens <= 0 {
		opts.MaxSectionTokens = DefaultMaxSectionTokens
	}
	if opts.CreatedAt.IsZero() {
		opts.CreatedAt = time.Now()
	}

	s := &splitter{
		opts:      opts,
		createdAt: opts.CreatedAt.Unix(),
		used:      make(map[string]int),
	}

	title := tree.Title
	if title == "" {
		title = "Untitled"
	}
	rootTag := s.dtag(address.Slug(title), "publication")

	var children []address.Address
	for _, n := range tree.Children {
		children = append(children, s.node(n, rootTag)...)
	}
	if len(children) == 0 {
		return nil, ErrEmptyDocument
	}

	extra := [][]string{}
	if opts.ContentHash != "" {
		extra = append(extra, []string{"x", opts.ContentHash})
	}
	root := s.emit(event.KindIndex, rootTag, title, "", children, extra)
	return &Publication{Root: root, Title: title, Events: s.events}, nil
}

// node emits the events for n and returns the addresses its parent should
// list, in order.
func (s *splitter) node(n *doctree.DocNode, parentTag string) []address.Address {
	tag := s.dtag(parentTag+"-"+address.Slug(n.Title), parentTag+"-section")

	if len(n.Children) == 0 {
		if n.Text == "" && n.Title == "" {
			return nil
		}
		parts := splitText(n.Text, s.opts.MaxSectionTokens)
		if len(parts) == 1 {
			return []address.Address{s.emit(event.KindSection, tag, n.Title, parts[0], nil, nil)}
		}
		// Oversized content: the heading becomes an index over its parts.
		return []address.Address{s.emit(event.KindIndex, tag, n.Title, "", s.parts(tag, n.Title, parts), nil)}
	}

	var children []address.Address
	if n.Text != "" {
		children = append(children, s.parts(tag+"-preamble", "", splitText(n.Text, s.opts.MaxSectionTokens))...)
	}
	for _, c := range n.Children {
		children = append(children, s.node(c, tag)...)
	}
	return []address.Address{s.emit(event.KindIndex, tag, n.Title, "", children, nil)}
}

// parts emits one section per text part. Multiple parts are numbered.
func (s *splitter) parts(tag, title string, parts []string) []address.Address {
	if len(parts) == 1 {
		return []address.Address{s.emit(event.KindSection, s.dtag(tag, tag), title, parts[0], nil, nil)}
	}
	out := make([]address.Address, 0, len(parts))
	for i, p := range parts {
		partTitle := ""
		if title != "" {
			partTitle = fmt.Sprintf("%s (%d/%d)", title, i+1, len(parts))
		}
		out = append(out, s.emit(event.KindSection, s.dtag(tag+"-part-"+strconv.Itoa(i+1), tag), partTitle, p, nil, nil))
	}
	return out
}

// dtag returns a d-tag not used before in this publication. A base that
// slugged to nothing falls back to fallback.
func (s *splitter) dtag(base, fallback string) string {
	if base == "" || base[len(base)-1] == '-' {
		base = fallback
	}
	s.used[base]++
	if n := s.used[base]; n > 1 {
		return s.dtag(base+"-"+strconv.Itoa(n), fallback)
	}
	return base
}

// emit appends an event and returns its address.
func (s *splitter) emit(kind int, dtag, title, content string, children []address.Address, extra [][]string) address.Address {
	tags := [][]string{{"d", dtag}}
	if title != "" {
		tags = append(tags, []string{"title", title})
	}
	tags = append(tags, extra...)
	for _, c := range children {
		tags = append(tags, []string{"a", string(c)})
	}
	ev := &event.Event{
		Pubkey:    s.opts.Pubkey,
		CreatedAt: s.createdAt,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	ev.ID = ev.ComputeID()
	s.events = append(s.events, ev)
	return ev.Address()
}
