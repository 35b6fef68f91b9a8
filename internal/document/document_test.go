package document_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marksync/internal/document"
)

const sample = `---
asana_project: 1201
is_user_list: false
last_synced: 2026-08-01T09:00:00Z
---
# Website Relaunch

- [ ] Unsectioned task <!-- id:1 -->

## Doing

- [ ] Draft copy <!-- id:2 -->
- [x] Pick fonts <!-- id:3 -->
Some meeting notes in between.

## Done

- [x] Kickoff <!-- id:4 -->
`

func TestParse(t *testing.T) {
	t.Parallel()

	doc := document.Parse(sample)

	// Raw lines reassemble byte-for-byte.
	assert.Equal(t, sample, document.Join(doc.RawLines))

	require.Len(t, doc.Frontmatter, 5)
	assert.Equal(t, "---", doc.Frontmatter[0])
	assert.Equal(t, "---", doc.Frontmatter[4])

	project, ok := doc.FrontmatterValue(document.KeyProject)
	require.True(t, ok)
	assert.Equal(t, "1201", project)

	_, ok = doc.FrontmatterValue("missing_key")
	assert.False(t, ok)

	require.GreaterOrEqual(t, doc.HeaderLine, 0)
	assert.Equal(t, "# Website Relaunch", doc.RawLines[doc.HeaderLine])

	var names []string
	for _, s := range doc.Sections {
		names = append(names, s.Name)
	}

	if diff := cmp.Diff([]string{"", "Doing", "Done"}, names); diff != "" {
		t.Fatalf("section order mismatch (-want +got):\n%s", diff)
	}

	def := doc.Section("")
	require.NotNil(t, def)
	require.Len(t, def.Tasks, 1)
	assert.Equal(t, "Unsectioned task", def.Tasks[0].Title)

	doing := doc.Section("Doing")
	require.NotNil(t, doing)
	require.Len(t, doing.Tasks, 2)
	assert.Equal(t, "2", doing.Tasks[0].GID)
	assert.Equal(t, "3", doing.Tasks[1].GID)

	byGID := doc.TasksByGID()
	assert.Len(t, byGID, 4)
	assert.Equal(t, "Kickoff", byGID["4"].Title)
}

func TestParseNoFrontmatter(t *testing.T) {
	t.Parallel()

	doc := document.Parse("# Title\n\n- [ ] A <!-- id:1 -->\n")

	assert.Nil(t, doc.Frontmatter)
	assert.Equal(t, 0, doc.HeaderLine)
	require.Len(t, doc.Tasks(), 1)
}

func TestParseUnterminatedFrontmatter(t *testing.T) {
	t.Parallel()

	doc := document.Parse("---\nasana_project: 1\n# Not a header\n")

	// An unterminated block is not frontmatter, and the "# " line is not
	// the first non-blank line, so there is no header either.
	assert.Nil(t, doc.Frontmatter)
	assert.Equal(t, -1, doc.HeaderLine)
}

func TestParseHeaderRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		content    string
		wantHeader int
	}{
		{
			name:       "blank lines before header are skipped",
			content:    "\n\n# Header\n",
			wantHeader: 2,
		},
		{
			name:       "text before any header means no header",
			content:    "notes first\n# Looks like a header\n",
			wantHeader: -1,
		},
		{
			name:       "second header line is opaque",
			content:    "# First\n# Second\n",
			wantHeader: 0,
		},
		{
			name:       "empty content",
			content:    "",
			wantHeader: -1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc := document.Parse(tt.content)
			assert.Equal(t, tt.wantHeader, doc.HeaderLine)
		})
	}
}

func TestLaterHashLineIsOpaque(t *testing.T) {
	t.Parallel()

	doc := document.Parse("# Real header\n\n## Doing\n# Not a header\n- [ ] A <!-- id:1 -->\n")

	assert.Equal(t, 0, doc.HeaderLine)

	doing := doc.Section("Doing")
	require.NotNil(t, doing)
	require.Len(t, doing.Tasks, 1)
}

func TestSectionSpans(t *testing.T) {
	t.Parallel()

	lines := strings.Split(sample, "\n")
	spans := document.SectionSpans(lines)

	doing, ok := spans["Doing"]
	require.True(t, ok)
	assert.Equal(t, "## Doing", lines[doing.Heading])
	assert.Equal(t, "## Done", lines[doing.End])

	done, ok := spans["Done"]
	require.True(t, ok)
	assert.Equal(t, len(lines), done.End)

	def, ok := spans[""]
	require.True(t, ok)
	assert.Equal(t, -1, def.Heading)
	assert.Equal(t, doing.Heading, def.End)
}
