package task_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marksync/internal/task"
)

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		line     string
		wantOK   bool
		wantTask task.Task
	}{
		{
			name:   "incomplete task with all segments",
			line:   "- [ ] Write release notes 📅 2026-01-15 👤 Alice Chen <!-- id:1201456 -->",
			wantOK: true,
			wantTask: task.Task{
				Title:    "Write release notes",
				DueOn:    "2026-01-15",
				Assignee: "Alice Chen",
				GID:      "1201456",
			},
		},
		{
			name:     "completed lowercase checkbox",
			line:     "- [x] Ship it <!-- id:42 -->",
			wantOK:   true,
			wantTask: task.Task{Completed: true, Title: "Ship it", GID: "42"},
		},
		{
			name:     "completed uppercase checkbox",
			line:     "- [X] Ship it",
			wantOK:   true,
			wantTask: task.Task{Completed: true, Title: "Ship it"},
		},
		{
			name:     "title only, no identifier",
			line:     "- [ ] Buy milk",
			wantOK:   true,
			wantTask: task.Task{Title: "Buy milk"},
		},
		{
			name:     "due date without assignee",
			line:     "- [ ] Pay rent 📅 2026-02-01",
			wantOK:   true,
			wantTask: task.Task{Title: "Pay rent", DueOn: "2026-02-01"},
		},
		{
			name:     "assignee without due date",
			line:     "- [ ] Review PR 👤 Bob <!-- id:9 -->",
			wantOK:   true,
			wantTask: task.Task{Title: "Review PR", Assignee: "Bob", GID: "9"},
		},
		{
			name:     "trailing whitespace is insignificant",
			line:     "- [ ] Tidy up <!-- id:7 -->   ",
			wantOK:   true,
			wantTask: task.Task{Title: "Tidy up", GID: "7"},
		},
		{
			name:     "empty title",
			line:     "- [ ]",
			wantOK:   true,
			wantTask: task.Task{},
		},
		{
			name:   "markers out of order are opaque text",
			line:   "- [ ] Review 👤 Bob 📅 2026-02-01",
			wantOK: false,
		},
		{
			name:   "identifier comment before assignee is opaque text",
			line:   "- [ ] Review <!-- id:9 --> 👤 Bob",
			wantOK: false,
		},
		{
			name:   "invalid due date is opaque text",
			line:   "- [ ] Pay rent 📅 tomorrow",
			wantOK: false,
		},
		{
			name:   "malformed identifier comment is opaque text",
			line:   "- [ ] Tidy up <!-- ref:7 -->",
			wantOK: false,
		},
		{
			name:   "unterminated comment is opaque text",
			line:   "- [ ] Tidy up <!-- id:7",
			wantOK: false,
		},
		{
			name:   "trailing text after comment is opaque text",
			line:   "- [ ] Tidy up <!-- id:7 --> done",
			wantOK: false,
		},
		{
			name:   "indented checkbox is opaque text",
			line:   "  - [ ] Nested item",
			wantOK: false,
		},
		{
			name:   "plain text line",
			line:   "Some meeting notes",
			wantOK: false,
		},
		{
			name:   "heading line",
			line:   "## Doing",
			wantOK: false,
		},
		{
			name:   "empty line",
			line:   "",
			wantOK: false,
		},
		{
			name:   "unchecked bullet without checkbox",
			line:   "- just a bullet",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := task.ParseLine(tt.line, 3)
			require.Equal(t, tt.wantOK, ok)

			if !ok {
				return
			}

			assert.Equal(t, tt.line, got.Raw)
			assert.Equal(t, 3, got.Line)
			assert.Equal(t, tt.wantTask.Completed, got.Completed)
			assert.Equal(t, tt.wantTask.Title, got.Title)
			assert.Equal(t, tt.wantTask.DueOn, got.DueOn)
			assert.Equal(t, tt.wantTask.Assignee, got.Assignee)
			assert.Equal(t, tt.wantTask.GID, got.GID)
		})
	}
}

func TestFormatLine(t *testing.T) {
	t.Parallel()

	allOn := task.FormatOptions{ShowDueDate: true, ShowAssignee: true}

	tests := []struct {
		name string
		task task.Task
		opts task.FormatOptions
		want string
	}{
		{
			name: "all segments",
			task: task.Task{Title: "Write notes", DueOn: "2026-01-15", Assignee: "Alice", GID: "11"},
			opts: allOn,
			want: "- [ ] Write notes 📅 2026-01-15 👤 Alice <!-- id:11 -->",
		},
		{
			name: "completed task",
			task: task.Task{Completed: true, Title: "Done thing", GID: "5"},
			opts: allOn,
			want: "- [x] Done thing <!-- id:5 -->",
		},
		{
			name: "due date hidden by option",
			task: task.Task{Title: "Pay rent", DueOn: "2026-02-01", GID: "8"},
			opts: task.FormatOptions{ShowAssignee: true},
			want: "- [ ] Pay rent <!-- id:8 -->",
		},
		{
			name: "assignee hidden by option",
			task: task.Task{Title: "Review", Assignee: "Bob", GID: "9"},
			opts: task.FormatOptions{ShowDueDate: true},
			want: "- [ ] Review <!-- id:9 -->",
		},
		{
			name: "absent fields are omitted",
			task: task.Task{Title: "Plain", GID: "3"},
			opts: allOn,
			want: "- [ ] Plain <!-- id:3 -->",
		},
		{
			name: "no identifier",
			task: task.Task{Title: "Local only"},
			opts: allOn,
			want: "- [ ] Local only",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, task.FormatLine(tt.task, tt.opts))
		})
	}
}

// Titles and assignee names are remote-owned free text; marker glyphs in
// them must not produce a line the parser rejects.
func TestFormatLineNeutralizesMarkerGlyphs(t *testing.T) {
	t.Parallel()

	allOn := task.FormatOptions{ShowDueDate: true, ShowAssignee: true}

	tests := []struct {
		name string
		task task.Task
		want string
	}{
		{
			name: "due glyph in title",
			task: task.Task{Title: "Plan 📅 party", GID: "909"},
			want: "- [ ] Plan party <!-- id:909 -->",
		},
		{
			name: "assignee glyph in title",
			task: task.Task{Title: "Ping 👤 ops", Assignee: "Alice", GID: "12"},
			want: "- [ ] Ping ops 👤 Alice <!-- id:12 -->",
		},
		{
			name: "comment opener in title",
			task: task.Task{Title: "Note <!-- draft", GID: "13"},
			want: "- [ ] Note draft <!-- id:13 -->",
		},
		{
			name: "glyph in assignee name",
			task: task.Task{Title: "Review", Assignee: "Ops 📅 Team", GID: "14"},
			want: "- [ ] Review 👤 Ops Team <!-- id:14 -->",
		},
		{
			name: "glyph with a real due date",
			task: task.Task{Title: "Plan 📅 party", DueOn: "2026-06-01", GID: "15"},
			want: "- [ ] Plan party 📅 2026-06-01 <!-- id:15 -->",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			line := task.FormatLine(tt.task, allOn)
			assert.Equal(t, tt.want, line)

			parsed, ok := task.ParseLine(line, 0)
			require.True(t, ok, "formatted line must parse: %q", line)
			assert.Equal(t, tt.task.GID, parsed.GID)
			assert.Equal(t, tt.task.DueOn, parsed.DueOn)

			// Stable from here on: re-formatting changes nothing.
			assert.Equal(t, line, task.FormatLine(parsed, allOn))
		})
	}
}

// The codec idempotence contract: parsing a formatted line yields the same
// task, and re-formatting the parsed task yields the same line.
func TestRoundTrip(t *testing.T) {
	t.Parallel()

	allOn := task.FormatOptions{ShowDueDate: true, ShowAssignee: true}

	tasks := []task.Task{
		{Title: "Write release notes", DueOn: "2026-01-15", Assignee: "Alice Chen", GID: "1201456"},
		{Completed: true, Title: "Ship v2", GID: "42"},
		{Title: "No identifier yet", DueOn: "2026-03-01"},
		{Title: "Unicode títle ☕", Assignee: "Åse", GID: "77"},
		{Title: ""},
		{Completed: true, Title: "Due only", DueOn: "2025-12-31", GID: "900"},
	}

	for _, orig := range tasks {
		line := task.FormatLine(orig, allOn)

		parsed, ok := task.ParseLine(line, 0)
		require.True(t, ok, "formatted line must parse: %q", line)

		assert.Equal(t, orig.Completed, parsed.Completed)
		assert.Equal(t, orig.Title, parsed.Title)
		assert.Equal(t, orig.DueOn, parsed.DueOn)
		assert.Equal(t, orig.Assignee, parsed.Assignee)
		assert.Equal(t, orig.GID, parsed.GID)

		assert.Equal(t, line, task.FormatLine(parsed, allOn))
	}
}
