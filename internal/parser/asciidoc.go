package parser

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/dgallion1/alexandria/internal/doctree"
)

// AsciiDocParser handles AsciiDoc sources. "= Title" names the document,
// "==" through "======" open sections at levels 1-5. Listing, literal and
// comment blocks are never scanned for headings.
type AsciiDocParser struct{}

var (
	adocHeading   = regexp.MustCompile(`^(={1,6})\s+(\S.*?)\s*$`)
	adocAttribute = regexp.MustCompile(`^:!?[A-Za-z0-9_][A-Za-z0-9_-]*!?:`)
)

// adocFence reports whether text delimits a block whose content is kept
// verbatim: four or more of one of - . / + _ = * (listing, literal,
// comment, passthrough, quote, example, sidebar). The block closes on a
// line identical to the one that opened it.
func adocFence(text string) bool {
	if len(text) < 4 || !strings.ContainsRune("-./+_=*", rune(text[0])) {
		return false
	}
	return strings.Count(text, text[:1]) == len(text)
}

// Comment blocks are dropped along with their delimiters.
func adocComment(fence string) bool {
	return fence[0] == '/'
}

func (p *AsciiDocParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	b := doctree.NewBuilder(baseTitle(filename))
	var para []string
	inHeader := true // attribute entries directly after the title
	var fence string // open delimiter, "" outside delimited blocks
	line := 0

	flush := func() {
		if len(para) > 0 {
			b.Text(strings.Join(para, "\n"))
			para = para[:0]
		}
	}

	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), " \t\r")

		if fence != "" {
			if !adocComment(fence) {
				para = append(para, text)
			}
			if text == fence {
				fence = ""
				flush()
			}
			continue
		}

		switch {
		case text == "":
			flush()
			inHeader = false
			continue
		case adocFence(text):
			flush()
			fence = text
			if !adocComment(fence) {
				para = append(para, text)
			}
			continue
		case strings.HasPrefix(text, "//"):
			continue
		case inHeader && adocAttribute.MatchString(text):
			continue
		}

		if m := adocHeading.FindStringSubmatch(text); m != nil {
			flush()
			level := len(m[1]) - 1
			if level == 0 {
				b.SetTitle(m[2])
				inHeader = true
				continue
			}
			inHeader = false
			b.SetPage(line)
			b.Heading(level, m[2])
			continue
		}

		inHeader = false
		para = append(para, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	return b.Tree(), nil
}
