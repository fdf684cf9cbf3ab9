package index

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ParseMarkdown splits raw markdown into a nested section tree keyed on ATX
// headings. Text before the first heading becomes a heading-less root section.
func ParseMarkdown(raw string) (title string, sections []Section) {
	type frame struct {
		section *Section
		level   int
	}

	var roots []Section
	var stack []frame
	var body strings.Builder

	flush := func() {
		text := strings.TrimRight(body.String(), "\n")
		body.Reset()
		if len(stack) > 0 {
			stack[len(stack)-1].section.Body = text
		} else if strings.TrimSpace(text) != "" {
			roots = append(roots, Section{Body: text})
		}
	}

	// attach wires a finished subtree into its parent once the stack unwinds.
	var attach func(f frame)
	attach = func(f frame) {
		if len(stack) == 0 {
			roots = append(roots, *f.section)
			return
		}
		parent := stack[len(stack)-1].section
		parent.Children = append(parent.Children, *f.section)
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		level := headingLevel(trimmed)
		if level == 0 {
			body.WriteString(line)
			body.WriteString("\n")
			continue
		}

		flush()
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			attach(top)
		}

		heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		if title == "" && level == 1 {
			title = heading
		}
		stack = append(stack, frame{section: &Section{Heading: heading, Level: level}, level: level})
	}

	flush()
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		attach(top)
	}

	return title, roots
}

func headingLevel(line string) int {
	if !strings.HasPrefix(line, "#") {
		return 0
	}
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level > 6 || level >= len(line) || line[level] != ' ' {
		return 0
	}
	return level
}

// Classify derives a document identity from a file path and its content.
// This mirrors the index-build-time classifier boundary: the filename pattern
// wins, a typed reference in the first heading is the fallback.
func Classify(path, raw string) (DocumentIdentity, error) {
	base := filepath.Base(path)
	if t, n, ok := ParseRef(base); ok {
		return DocumentIdentity{Type: t, Number: n, Path: path}, nil
	}

	for _, line := range strings.SplitN(raw, "\n", 20) {
		if headingLevel(strings.TrimSpace(line)) > 0 {
			if t, n, ok := ParseRef(line); ok {
				return DocumentIdentity{Type: t, Number: n, Path: path}, nil
			}
		}
	}

	return DocumentIdentity{}, fmt.Errorf("no typed reference in %s", base)
}

// LoadDocument parses one markdown file into a Document.
func LoadDocument(path, raw string) (*Document, error) {
	identity, err := Classify(path, raw)
	if err != nil {
		return nil, err
	}
	title, sections := ParseMarkdown(raw)
	if title == "" {
		title = identity.Canonical()
	}
	return &Document{
		Identity: identity,
		Title:    title,
		Sections: sections,
		Raw:      raw,
	}, nil
}
