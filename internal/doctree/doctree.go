package doctree

import "strings"

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for untitled text)
	Level    int        // Heading level in the source (1 = top), 0 if none
	Text     string     // Text directly under the heading, before any subsection
	Page     int        // Source page/line (0 if N/A)
	Children []*DocNode // Subsections
}

// Builder assembles a DocTree from a flat stream of headings and text
// blocks. A heading closes every open section at the same or deeper level.
type Builder struct {
	title string
	stack []stackEntry
	text  strings.Builder
	page  int
}

type stackEntry struct {
	node  *DocNode
	level int
}

func NewBuilder(title string) *Builder {
	root := &DocNode{Title: title}
	return &Builder{
		title: title,
		stack: []stackEntry{{node: root, level: 0}},
	}
}

// SetTitle replaces the document title, e.g. once a <title> or "= Title"
// line has been seen.
func (b *Builder) SetTitle(title string) {
	b.title = title
	b.stack[0].node.Title = title
}

// SetPage records the source page for headings that follow.
func (b *Builder) SetPage(page int) {
	b.page = page
}

// Heading opens a section at level (1 = top).
func (b *Builder) Heading(level int, title string) {
	b.flush()
	if level < 1 {
		level = 1
	}
	n := &DocNode{Title: title, Level: level, Page: b.page}
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, n)
	b.stack = append(b.stack, stackEntry{node: n, level: level})
}

// Text appends a block of text to the innermost open section.
func (b *Builder) Text(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if b.text.Len() > 0 {
		b.text.WriteString("\n\n")
	}
	b.text.WriteString(t)
}

func (b *Builder) flush() {
	t := strings.TrimSpace(b.text.String())
	b.text.Reset()
	if t == "" {
		return
	}
	top := b.stack[len(b.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

// Tree finishes the document. Text before the first heading becomes an
// untitled leading section; a document with no headings is a single one.
func (b *Builder) Tree() *DocTree {
	b.flush()
	root := b.stack[0].node
	tree := &DocTree{Title: b.title, Children: root.Children}
	if root.Text != "" {
		lead := &DocNode{Text: root.Text}
		tree.Children = append([]*DocNode{lead}, tree.Children...)
	}
	return tree
}

// Walk visits every node depth-first with its heading breadcrumb (titles of
// its ancestors, not including itself).
func (t *DocTree) Walk(fn func(n *DocNode, breadcrumb []string)) {
	var walk func(nodes []*DocNode, bc []string)
	walk = func(nodes []*DocNode, bc []string) {
		for _, n := range nodes {
			fn(n, bc)
			next := bc
			if n.Title != "" {
				next = append(bc[:len(bc):len(bc)], n.Title)
			}
			walk(n.Children, next)
		}
	}
	walk(t.Children, nil)
}

// PlainText joins all node text in reading order.
func (t *DocTree) PlainText() string {
	var sb strings.Builder
	t.Walk(func(n *DocNode, _ []string) {
		if n.Text == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(n.Text)
	})
	return sb.String()
}
