package parser

import (
	"strings"
	"testing"
)

const sampleAdoc = `= The Book
:author: Someone
:toc:

Opening words.

== Chapter One

First chapter body.

=== Part A

Part A body.

----
== not a heading
----

== Chapter Two

// a comment line
Second chapter body.

////
== hidden
////
`

func TestAsciiDocParser_Structure(t *testing.T) {
	p := &AsciiDocParser{}
	tree, err := p.Parse(strings.NewReader(sampleAdoc), "book.adoc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tree.Title != "The Book" {
		t.Errorf("expected title %q, got %q", "The Book", tree.Title)
	}

	// Preamble, Chapter One, Chapter Two.
	if len(tree.Children) != 3 {
		t.Fatalf("expected 3 top-level children, got %d", len(tree.Children))
	}
	if tree.Children[0].Title != "" || tree.Children[0].Text != "Opening words." {
		t.Errorf("unexpected preamble: %+v", tree.Children[0])
	}

	ch1 := tree.Children[1]
	if ch1.Title != "Chapter One" || ch1.Level != 1 {
		t.Errorf("unexpected chapter one: %+v", ch1)
	}
	if ch1.Text != "First chapter body." {
		t.Errorf("expected chapter one text, got %q", ch1.Text)
	}
	if len(ch1.Children) != 1 || ch1.Children[0].Title != "Part A" {
		t.Fatalf("expected Part A under Chapter One, got %+v", ch1.Children)
	}
	partA := ch1.Children[0]
	if partA.Level != 2 {
		t.Errorf("expected Part A level 2, got %d", partA.Level)
	}
	if !strings.Contains(partA.Text, "== not a heading") {
		t.Errorf("expected listing block kept verbatim, got %q", partA.Text)
	}

	ch2 := tree.Children[2]
	if ch2.Title != "Chapter Two" {
		t.Errorf("expected %q, got %q", "Chapter Two", ch2.Title)
	}
	if ch2.Text != "Second chapter body." {
		t.Errorf("expected comments dropped, got %q", ch2.Text)
	}
	if strings.Contains(ch2.Text, "hidden") {
		t.Errorf("comment block leaked into text: %q", ch2.Text)
	}
}

func TestAsciiDocParser_AttributesSkipped(t *testing.T) {
	p := &AsciiDocParser{}
	tree, err := p.Parse(strings.NewReader(sampleAdoc), "book.adoc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(tree.Children[0].Text, ":author:") {
		t.Errorf("header attributes should not be content, got %q", tree.Children[0].Text)
	}
}

func TestAsciiDocParser_NoTitleUsesFilename(t *testing.T) {
	p := &AsciiDocParser{}
	tree, err := p.Parse(strings.NewReader("== Only\n\nbody\n"), "notes.asciidoc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", tree.Title)
	}
	if len(tree.Children) != 1 || tree.Children[0].Title != "Only" {
		t.Fatalf("unexpected children: %+v", tree.Children)
	}
}

func TestAsciiDocParser_Empty(t *testing.T) {
	p := &AsciiDocParser{}
	tree, err := p.Parse(strings.NewReader(""), "empty.adoc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Children) != 0 {
		t.Errorf("expected no children, got %d", len(tree.Children))
	}
}

func TestAsciiDocParser_LongDelimiters(t *testing.T) {
	src := `= Manual

== Setup

------
== inside listing
----
still inside
------

======
== inside example
======

//////
== hidden
//////

== Usage

Usage body.
`
	p := &AsciiDocParser{}
	tree, err := p.Parse(strings.NewReader(src), "manual.adoc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Children) != 2 {
		t.Fatalf("expected 2 sections, got %d: %+v", len(tree.Children), tree.Children)
	}

	setup := tree.Children[0]
	if setup.Title != "Setup" || len(setup.Children) != 0 {
		t.Fatalf("unexpected setup section: %+v", setup)
	}
	for _, want := range []string{"== inside listing", "----\nstill inside", "== inside example"} {
		if !strings.Contains(setup.Text, want) {
			t.Errorf("expected %q kept verbatim, got %q", want, setup.Text)
		}
	}
	if strings.Contains(setup.Text, "hidden") {
		t.Errorf("comment block leaked into text: %q", setup.Text)
	}

	if usage := tree.Children[1]; usage.Title != "Usage" || usage.Text != "Usage body." {
		t.Errorf("unexpected usage section: %+v", usage)
	}
}
