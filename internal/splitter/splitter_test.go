package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClampsParameters(t *testing.T) {
	s := New(0, -3)
	assert.Equal(t, DefaultChunkSize, s.Size())
	assert.Equal(t, 0, s.Overlap())

	s = New(100, 100)
	assert.Equal(t, 50, s.Overlap())
}

func TestSplitBlank(t *testing.T) {
	chunks, err := New(DefaultChunkSize, DefaultChunkOverlap).Split("   \n\t ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitShortTextIsOneChunk(t *testing.T) {
	chunks, err := New(DefaultChunkSize, DefaultChunkOverlap).Split("A short chapter.")
	require.NoError(t, err)
	assert.Equal(t, []string{"A short chapter."}, chunks)
}

func TestSplitRespectsSize(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 400; i++ {
		sb.WriteString("The river ran quietly past the old mill. ")
	}
	s := New(200, 40)
	chunks, err := s.Split(sb.String())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 200)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}
