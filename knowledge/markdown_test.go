package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `Intro paragraph before any heading.

# Time Blocking

Keywords: focus, deep work, calendar

Block out chunks of the day for a single task.
Protect the blocks like meetings.

# Interview Prep

Practice cases out loud.

- Market sizing
- Profitability
`

func TestChunkMarkdown(t *testing.T) {
	chunks := ChunkMarkdown("productivity", []byte(sampleDoc))
	require.Len(t, chunks, 3)

	assert.Equal(t, "productivity", chunks[0].ID)
	assert.Contains(t, chunks[0].Content, "Intro paragraph")

	assert.Equal(t, "productivity#time-blocking", chunks[1].ID)
	assert.Equal(t, "Time Blocking", chunks[1].Title)
	assert.Equal(t, []string{"focus", "deep work", "calendar"}, chunks[1].Keywords)
	assert.Contains(t, chunks[1].Content, "Protect the blocks")
	assert.NotContains(t, chunks[1].Content, "Keywords:")

	assert.Equal(t, "productivity#interview-prep", chunks[2].ID)
	assert.Contains(t, chunks[2].Content, "Market sizing")
}

func TestChunkMarkdown_NoPreamble(t *testing.T) {
	chunks := ChunkMarkdown("doc", []byte("# Only Section\n\nBody.\n"))
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc#only-section", chunks[0].ID)
}

func TestChunkEmbeddingInput(t *testing.T) {
	chunk := Chunk{Title: "Buffers", Keywords: []string{"gap", "travel"}, Content: "Leave ten minutes."}
	input := chunk.EmbeddingInput()
	assert.Equal(t, "Buffers\ngap, travel\nLeave ten minutes.", input)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "mba-recruiting-101", slugify("MBA Recruiting 101!"))
}
