// Package document models the structure of a synced markdown document:
// an optional frontmatter block, a header line, and an ordered list of
// sections holding task lines.
//
// The raw line sequence is the source of truth. Parsing derives structure
// from it without modifying it, so callers can rewrite the document in place
// line by line and preserve everything they do not understand.
package document

import (
	"strings"

	"marksync/internal/task"
)

// Frontmatter keys written and maintained by the sync engine.
const (
	KeyProject    = "asana_project"
	KeyUserList   = "is_user_list"
	KeyLastSynced = "last_synced"
)

// Delimiter is the frontmatter fence line.
const Delimiter = "---"

const (
	headerPrefix  = "# "
	sectionPrefix = "## "
)

// Section is one named block of the document. The implicit default bucket
// (tasks before any heading) has an empty name and no heading line.
type Section struct {
	Name  string
	Tasks []task.Task
	Start int // line index of the heading; -1 for the default bucket
	End   int // exclusive end of the section's span
}

// Document is the parsed view of one file. Section order equals
// first-appearance order in the raw lines.
type Document struct {
	RawLines    []string
	Frontmatter []string // raw lines including both delimiters; nil when absent
	HeaderLine  int      // index of the header line; -1 when absent
	Sections    []Section
}

// Parse builds a Document from file content. It never fails: content that
// does not match the expected shape simply yields fewer derived parts, and
// every line survives verbatim in RawLines.
func Parse(content string) *Document {
	lines := strings.Split(content, "\n")

	doc := &Document{RawLines: lines, HeaderLine: -1}

	body := 0

	// A frontmatter block exists only if the very first line is the
	// delimiter, and runs through the next delimiter line. An unterminated
	// block is not frontmatter; the opening line is ordinary text.
	if len(lines) > 0 && lines[0] == Delimiter {
		for i := 1; i < len(lines); i++ {
			if lines[i] == Delimiter {
				doc.Frontmatter = lines[:i+1]
				body = i + 1

				break
			}
		}
	}

	// The header is the first "# " line after frontmatter, skipping blank
	// lines only. Once consumed it is never reconsidered; any later "# "
	// line is opaque text inside a section.
	i := body
	for ; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}

		if strings.HasPrefix(lines[i], headerPrefix) {
			doc.HeaderLine = i
			i++
		}

		break
	}

	current := Section{Start: -1}

	for ; i < len(lines); i++ {
		line := lines[i]

		if strings.HasPrefix(line, sectionPrefix) {
			current.End = i
			doc.Sections = append(doc.Sections, current)

			current = Section{Name: strings.TrimSpace(line[len(sectionPrefix):]), Start: i}

			continue
		}

		if t, ok := task.ParseLine(line, i); ok {
			current.Tasks = append(current.Tasks, t)
		}
	}

	current.End = len(lines)
	doc.Sections = append(doc.Sections, current)

	return doc
}

// Section returns the named section, or nil if the document has none.
// The empty name addresses the default bucket.
func (d *Document) Section(name string) *Section {
	for i := range d.Sections {
		if d.Sections[i].Name == name {
			return &d.Sections[i]
		}
	}

	return nil
}

// Tasks returns every task in the document in line order.
func (d *Document) Tasks() []task.Task {
	var all []task.Task
	for _, s := range d.Sections {
		all = append(all, s.Tasks...)
	}

	return all
}

// TasksByGID maps remote identifiers to their local tasks. Tasks without an
// identifier are excluded: the identifier is the only valid join key.
func (d *Document) TasksByGID() map[string]task.Task {
	byGID := make(map[string]task.Task)

	for _, t := range d.Tasks() {
		if t.GID != "" {
			byGID[t.GID] = t
		}
	}

	return byGID
}

// FrontmatterValue returns the value of a "key: value" frontmatter line.
func (d *Document) FrontmatterValue(key string) (string, bool) {
	return FrontmatterValue(d.Frontmatter, key)
}

// FrontmatterValue scans raw frontmatter lines for a "key: value" entry.
func FrontmatterValue(lines []string, key string) (string, bool) {
	prefix := key + ":"

	for _, line := range lines {
		if line == Delimiter {
			continue
		}

		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(rest), true
		}
	}

	return "", false
}

// FrontmatterLine renders a "key: value" frontmatter line.
func FrontmatterLine(key, value string) string {
	return key + ": " + value
}

// Join reassembles raw lines into file content.
func Join(lines []string) string {
	return strings.Join(lines, "\n")
}

// Span is a half-open line range belonging to one section.
type Span struct {
	Heading int // line index of the heading; -1 for the default bucket
	End     int // exclusive end: index of the next heading, or len(lines)
}

// SectionSpans indexes section name to line range in a single scan. Built
// once per reconciliation pass so new-task insertion does not re-scan the
// document per section.
func SectionSpans(lines []string) map[string]Span {
	spans := make(map[string]Span)

	openName := ""
	openStart := -1

	for i, line := range lines {
		if !strings.HasPrefix(line, sectionPrefix) {
			continue
		}

		if _, seen := spans[openName]; !seen {
			spans[openName] = Span{Heading: openStart, End: i}
		}

		openName = strings.TrimSpace(line[len(sectionPrefix):])
		openStart = i
	}

	if _, seen := spans[openName]; !seen {
		spans[openName] = Span{Heading: openStart, End: len(lines)}
	}

	return spans
}
