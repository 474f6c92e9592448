package indexer

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// section is a contiguous, self-contained piece of a guide document before
// windowing.
type section struct {
	Title string
	Text  string
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// supported reports whether the indexer knows how to read path.
func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt", ".pdf":
		return true
	}
	return false
}

// extract splits a document into sections according to its type.
func extract(path string, b []byte) ([]section, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return markdownSections(b), nil
	case ".txt":
		return textSections(string(b)), nil
	case ".pdf":
		return pdfSections(b)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

// markdownSections cuts the source at every heading the markdown parser
// recognizes, so "#" lines inside code blocks do not start a section. Text
// before the first heading is its own section. Headings with no body are
// dropped.
func markdownSections(src []byte) []section {
	doc := markdown.Parser().Parse(text.NewReader(src))

	type cut struct {
		title   string
		start   int
		hasBody bool
	}
	cuts := []cut{{start: 0}}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			cuts[len(cuts)-1].hasBody = true
			continue
		}
		start := lineStart(src, h.Lines().At(0).Start)
		var title bytes.Buffer
		for i := 0; i < h.Lines().Len(); i++ {
			seg := h.Lines().At(i)
			title.Write(seg.Value(src))
		}
		cuts = append(cuts, cut{title: strings.TrimSpace(title.String()), start: start})
	}

	var out []section
	for i, c := range cuts {
		if !c.hasBody {
			continue
		}
		end := len(src)
		if i+1 < len(cuts) {
			end = cuts[i+1].start
		}
		body := strings.TrimSpace(string(src[c.start:end]))
		if body == "" {
			continue
		}
		out = append(out, section{Title: c.title, Text: body})
	}
	return out
}

func lineStart(src []byte, off int) int {
	if off > len(src) {
		off = len(src)
	}
	if i := bytes.LastIndexByte(src[:off], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

// textSections returns one section per blank-line separated paragraph.
func textSections(s string) []section {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var out []section
	for _, p := range strings.Split(s, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, section{Text: p})
		}
	}
	return out
}

// pdfSections returns one section per page that has extractable text.
// The pdf package panics on some malformed content streams; that is
// reported as an error for the file.
func pdfSections(b []byte) (out []section, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		txt, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if txt = strings.TrimSpace(txt); txt != "" {
			out = append(out, section{Title: fmt.Sprintf("page %d", i), Text: txt})
		}
	}
	return out, nil
}

// pack merges consecutive short sections so each result stays within
// maxChars runes. A section that is already too long is passed through for
// window to split.
func pack(sections []section, maxChars int) []section {
	var out []section
	var cur section
	size := 0
	flush := func() {
		if size > 0 {
			out = append(out, cur)
		}
		cur, size = section{}, 0
	}
	for _, s := range sections {
		n := len([]rune(s.Text))
		if size > 0 && size+2+n > maxChars {
			flush()
		}
		if size == 0 {
			cur = s
			size = n
			continue
		}
		cur.Text += "\n\n" + s.Text
		size += 2 + n
	}
	flush()
	return out
}

// window splits s into pieces of at most maxChars runes, consecutive pieces
// sharing overlap runes. Cuts prefer whitespace in the second half of a
// window.
func window(s string, maxChars, overlap int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	r := []rune(s)
	if maxChars <= 0 || len(r) <= maxChars {
		return []string{s}
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = 0
	}

	var out []string
	for start := 0; start < len(r); {
		end := start + maxChars
		if end >= len(r) {
			if piece := strings.TrimSpace(string(r[start:])); piece != "" {
				out = append(out, piece)
			}
			break
		}
		half := start + maxChars/2
		for i := end; i > half; i-- {
			if r[i] == ' ' || r[i] == '\n' || r[i] == '\t' {
				end = i
				break
			}
		}
		if piece := strings.TrimSpace(string(r[start:end])); piece != "" {
			out = append(out, piece)
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}
