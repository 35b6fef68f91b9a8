// Package task implements the single-line codec for synced task lines.
//
// A synced task occupies exactly one markdown checkbox line:
//
//	- [ ] Write release notes 📅 2026-01-15 👤 Alice Chen <!-- id:1201456 -->
//
// The optional segments (due date, assignee, identifier comment) must appear
// in exactly that order. A checkbox line whose segments are out of order, or
// any line that is not a checkbox line, is not a task and is preserved as
// opaque text by the callers of this package.
//
// The grammar is deliberately strict: it is a line format this tool emits and
// re-reads, not a general inline-markup parser. ParseLine and FormatLine are
// exact inverses for every line FormatLine produces.
package task

import (
	"strings"
	"time"
)

// Markers for the optional line segments.
const (
	DueMarker      = "📅"
	AssigneeMarker = "👤"

	commentOpen  = "<!--"
	commentClose = "-->"
	idPrefix     = "id:"

	dueLayout = "2006-01-02"
)

// Checkbox prefixes. Formatting always emits the lowercase complete form.
const (
	checkboxOpen      = "- [ ]"
	checkboxDone      = "- [x]"
	checkboxDoneUpper = "- [X]"
)

// Task is the read-only view of one parsed document line. It exists only for
// the duration of a parse pass and is never persisted independently of the
// document text.
type Task struct {
	Raw       string // original line text, verbatim
	Line      int    // zero-based line index within the document
	Completed bool
	Title     string
	DueOn     string // calendar date YYYY-MM-DD, empty when absent
	Assignee  string // display name, empty when absent
	GID       string // remote identifier, empty for lines never synced
}

// FormatOptions controls which optional segments FormatLine emits.
type FormatOptions struct {
	ShowDueDate  bool
	ShowAssignee bool
}

// tokenKind enumerates the lexical segments of a task line body.
type tokenKind uint8

const (
	tokenTitle tokenKind = iota
	tokenDue
	tokenAssignee
	tokenID
)

type token struct {
	kind  tokenKind
	value string
}

// ParseLine parses one line of document text. The second return value is
// false when the line is not a task line; such lines are opaque text and
// must be preserved verbatim.
func ParseLine(line string, num int) (Task, bool) {
	body, completed, ok := cutCheckbox(strings.TrimRight(line, " \t"))
	if !ok {
		return Task{}, false
	}

	tokens, ok := lexBody(body)
	if !ok {
		return Task{}, false
	}

	t := Task{Raw: line, Line: num, Completed: completed}

	for _, tok := range tokens {
		switch tok.kind {
		case tokenTitle:
			t.Title = tok.value
		case tokenDue:
			t.DueOn = tok.value
		case tokenAssignee:
			t.Assignee = tok.value
		case tokenID:
			t.GID = tok.value
		}
	}

	return t, true
}

// FormatLine renders a task as a single line. Segments whose option is off or
// whose field is absent are omitted. The identifier comment is always emitted
// when the task carries a remote identifier.
//
// The title and assignee come from the remote, which puts no restrictions on
// its names, so embedded marker glyphs are stripped: every line FormatLine
// emits must reparse, or the line would turn opaque and be re-appended on
// the next reconciliation pass.
func FormatLine(t Task, opts FormatOptions) string {
	var b strings.Builder

	if t.Completed {
		b.WriteString(checkboxDone)
	} else {
		b.WriteString(checkboxOpen)
	}

	b.WriteString(" ")
	b.WriteString(neutralize(t.Title))

	if opts.ShowDueDate && t.DueOn != "" {
		b.WriteString(" ")
		b.WriteString(DueMarker)
		b.WriteString(" ")
		b.WriteString(t.DueOn)
	}

	if opts.ShowAssignee && t.Assignee != "" {
		b.WriteString(" ")
		b.WriteString(AssigneeMarker)
		b.WriteString(" ")
		b.WriteString(neutralize(t.Assignee))
	}

	if t.GID != "" {
		b.WriteString(" ")
		b.WriteString(commentOpen)
		b.WriteString(" ")
		b.WriteString(idPrefix)
		b.WriteString(t.GID)
		b.WriteString(" ")
		b.WriteString(commentClose)
	}

	return strings.TrimRight(b.String(), " ")
}

// markerStripper removes the grammar's marker tokens from free text.
var markerStripper = strings.NewReplacer(
	DueMarker, "",
	AssigneeMarker, "",
	commentOpen, "",
	"\n", " ",
)

// neutralize makes free text safe to embed in a task line: marker glyphs and
// the comment opener are stripped and whitespace is collapsed. Idempotent,
// so a neutralized title survives any number of parse/format cycles.
func neutralize(text string) string {
	return strings.Join(strings.Fields(markerStripper.Replace(text)), " ")
}

// cutCheckbox strips the checkbox prefix, returning the remaining body and
// the completion state. Lines with leading whitespace are not tasks; the
// formatter never indents, so indented checkboxes are user content.
func cutCheckbox(line string) (string, bool, bool) {
	for _, prefix := range []string{checkboxOpen, checkboxDone, checkboxDoneUpper} {
		if line == prefix {
			return "", prefix != checkboxOpen, true
		}

		if strings.HasPrefix(line, prefix+" ") {
			return line[len(prefix)+1:], prefix != checkboxOpen, true
		}
	}

	return "", false, false
}

// lexBody splits the body after the checkbox into ordered tokens. It reports
// false when the body violates the grammar: markers out of order, a repeated
// marker, a malformed identifier comment, or an invalid date.
func lexBody(body string) ([]token, bool) {
	dueIdx := strings.Index(body, DueMarker)
	asgIdx := strings.Index(body, AssigneeMarker)
	cmtIdx := strings.Index(body, commentOpen)

	// Present markers must appear in grammar order.
	if !orderedIndices(dueIdx, asgIdx) || !orderedIndices(asgIdx, cmtIdx) || !orderedIndices(dueIdx, cmtIdx) {
		return nil, false
	}

	end := len(body)

	tokens := []token{}

	if cmtIdx >= 0 {
		gid, ok := parseIDComment(body[cmtIdx:])
		if !ok {
			return nil, false
		}

		tokens = append(tokens, token{kind: tokenID, value: gid})
		end = cmtIdx
	}

	if asgIdx >= 0 {
		name := strings.TrimSpace(body[asgIdx+len(AssigneeMarker) : end])
		if name == "" {
			return nil, false
		}

		tokens = append(tokens, token{kind: tokenAssignee, value: name})
		end = asgIdx
	}

	if dueIdx >= 0 {
		date := strings.TrimSpace(body[dueIdx+len(DueMarker) : end])

		_, err := time.Parse(dueLayout, date)
		if err != nil {
			return nil, false
		}

		tokens = append(tokens, token{kind: tokenDue, value: date})
		end = dueIdx
	}

	title := strings.TrimSpace(body[:end])

	// The title segment must not contain a second marker occurrence; the
	// indices above already guarantee that, since they are first occurrences.
	ordered := []token{{kind: tokenTitle, value: title}}
	for i := len(tokens) - 1; i >= 0; i-- {
		ordered = append(ordered, tokens[i])
	}

	return ordered, true
}

// orderedIndices reports whether two first-occurrence indices respect grammar
// order. An absent marker (-1) imposes no constraint.
func orderedIndices(before, after int) bool {
	if before < 0 || after < 0 {
		return true
	}

	return before < after
}

// parseIDComment parses a trailing "<!-- id:GID -->" segment. The comment
// must close the line; trailing text after it breaks the grammar.
func parseIDComment(s string) (string, bool) {
	if !strings.HasSuffix(s, commentClose) {
		return "", false
	}

	inner := strings.TrimSpace(s[len(commentOpen) : len(s)-len(commentClose)])
	if !strings.HasPrefix(inner, idPrefix) {
		return "", false
	}

	gid := strings.TrimSpace(strings.TrimPrefix(inner, idPrefix))
	if gid == "" || strings.ContainsAny(gid, " \t") {
		return "", false
	}

	return gid, true
}
