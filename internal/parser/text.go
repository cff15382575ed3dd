package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/alexandria/internal/doctree"
)

// TextParser handles plain text files. Plain text has no headings, so every
// paragraph becomes its own untitled section.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	var current strings.Builder
	line, start := 0, 0

	emit := func() {
		if current.Len() == 0 {
			return
		}
		tree.Children = append(tree.Children, &doctree.DocNode{
			Text: current.String(),
			Page: start,
		})
		current.Reset()
	}

	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			emit()
			continue
		}
		if current.Len() == 0 {
			start = line
		} else {
			current.WriteString("\n")
		}
		current.WriteString(text)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	emit()

	return tree, nil
}
