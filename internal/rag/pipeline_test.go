package rag

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/bookbot/internal/apperr"
	"github.com/starford/bookbot/internal/testutil"
	"github.com/starford/bookbot/internal/vectorindex"
)

var book = []string{
	"Anna lived in a small house by the river.",
	"The main theme of the story is forgiveness between sisters.",
	"In winter the river froze and the village went quiet.",
}

func newPipeline(t *testing.T, gen *testutil.Generator, opts Options) *Pipeline {
	t.Helper()
	emb := &testutil.Embedder{}
	idx, err := vectorindex.Build(context.Background(), book, emb, vectorindex.BuildOptions{})
	require.NoError(t, err)
	p, err := NewPipeline(idx, emb, gen, opts)
	require.NoError(t, err)
	return p
}

func TestAskAnswered(t *testing.T) {
	gen := &testutil.Generator{Reply: "  The theme is forgiveness.\n"}
	p := newPipeline(t, gen, Options{})

	out := p.Ask(context.Background(), "What is the theme?", ModeAuto)
	assert.Equal(t, OutcomeAnswered, out.Kind)
	assert.Equal(t, "The theme is forgiveness.", out.Text)
	assert.NotEmpty(t, out.Sources)

	require.Len(t, gen.Params, 1)
	assert.Equal(t, DefaultMaxTokens, gen.Params[0].MaxTokens)
	assert.InDelta(t, 0.3, gen.Params[0].Temperature, 1e-6)

	prompt := gen.LastPrompt()
	assert.Contains(t, prompt, "forgiveness between sisters")
	assert.Contains(t, prompt, "User request: What is the theme?")
}

func TestZeroTemperatureIsKept(t *testing.T) {
	gen := &testutil.Generator{Reply: "Forgiveness."}
	zero := float32(0)
	p := newPipeline(t, gen, Options{Temperature: &zero})
	p.Ask(context.Background(), "What is the theme?", ModeAuto)

	p, err := p.WithMaxTokens(200)
	require.NoError(t, err)
	p.Ask(context.Background(), "What is the theme?", ModeAuto)

	require.Len(t, gen.Params, 2)
	assert.Zero(t, gen.Params[0].Temperature)
	assert.Zero(t, gen.Params[1].Temperature)
	assert.Equal(t, 200, gen.Params[1].MaxTokens)
}

func TestAskEmptyReplyIsNotRelevant(t *testing.T) {
	p := newPipeline(t, &testutil.Generator{Reply: "   "}, Options{})
	out := p.Ask(context.Background(), "What's the weather in Paris?", ModeAuto)
	assert.Equal(t, OutcomeNotRelevant, out.Kind)
	assert.Equal(t, NotRelevantText, out.Text)
}

func TestAskRefusalMarker(t *testing.T) {
	p := newPipeline(t, &testutil.Generator{Reply: "Sorry, that is not covered by this book."}, Options{})
	out := p.Ask(context.Background(), "Who won the match?", ModeAuto)
	assert.Equal(t, OutcomeNotRelevant, out.Kind)
	assert.Equal(t, NotRelevantText, out.Text)
}

func TestAskCustomRefusalMarkers(t *testing.T) {
	gen := &testutil.Generator{Reply: "Kechirasiz, bu haqida ma'lumot yo'q."}
	p := newPipeline(t, gen, Options{RefusalMarkers: []string{"Désolé"}})
	out := p.Ask(context.Background(), "q", ModeAuto)
	assert.Equal(t, OutcomeAnswered, out.Kind)

	p = newPipeline(t, gen, Options{RefusalMarkers: []string{"Kechirasiz"}})
	out = p.Ask(context.Background(), "q", ModeAuto)
	assert.Equal(t, OutcomeNotRelevant, out.Kind)
}

func TestAskGeneratorFailure(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	p := newPipeline(t, &testutil.Generator{Err: testutil.ErrGenerator}, Options{Logger: log})

	out := p.Ask(context.Background(), "What is the theme?", ModeAuto)
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, ApologyText, out.Text)
	assert.NotContains(t, out.Text, testutil.ErrGenerator.Error())
	assert.Contains(t, buf.String(), testutil.ErrGenerator.Error())
}

func TestAskGeneratorPanic(t *testing.T) {
	p := newPipeline(t, &testutil.Generator{Panic: true}, Options{Logger: slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))})
	out := p.Ask(context.Background(), "q", ModeQuiz)
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, ApologyText, out.Text)
}

func TestAskRetrievalFailure(t *testing.T) {
	emb := &testutil.Embedder{}
	idx, err := vectorindex.Build(context.Background(), book, emb, vectorindex.BuildOptions{})
	require.NoError(t, err)
	broken := &testutil.Embedder{Err: testutil.ErrGenerator}
	gen := &testutil.Generator{Reply: "unused"}
	p, err := NewPipeline(idx, broken, gen, Options{Logger: slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))})
	require.NoError(t, err)

	out := p.Ask(context.Background(), "q", ModeAuto)
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Empty(t, gen.Prompts)
}

func TestMaxTokensBounds(t *testing.T) {
	gen := &testutil.Generator{Reply: "ok"}
	p := newPipeline(t, gen, Options{MaxTokens: 150})
	assert.Equal(t, 150, p.MaxTokens())

	for _, n := range []int{99, 501, -1} {
		_, err := p.WithMaxTokens(n)
		assert.ErrorIs(t, err, apperr.ErrInvalidAnswerLimit, "n=%d", n)
	}

	q, err := p.WithMaxTokens(500)
	require.NoError(t, err)
	q.Ask(context.Background(), "q", ModeAuto)
	assert.Equal(t, 500, gen.Params[len(gen.Params)-1].MaxTokens)
	assert.Equal(t, 150, p.MaxTokens())
}

func TestModes(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)

	m, err = ParseMode(" Quiz ")
	require.NoError(t, err)
	assert.Equal(t, ModeQuiz, m)

	_, err = ParseMode("poem")
	assert.ErrorIs(t, err, apperr.ErrInvalidMode)

	hits := []vectorindex.Hit{{Text: "first"}, {Text: "second"}}
	assert.Contains(t, BuildPrompt("q", ModeSummary, hits), "follow rule 3")
	assert.NotContains(t, BuildPrompt("q", ModeAuto, hits), "follow rule")
	assert.Contains(t, BuildPrompt("q", ModeAuto, hits), "first\n\nsecond")
}

func TestKindJSONName(t *testing.T) {
	b, err := OutcomeNotRelevant.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "not_relevant", string(b))
}

func TestKindUnmarshalText(t *testing.T) {
	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("failed")))
	assert.Equal(t, OutcomeFailed, k)
	assert.Error(t, k.UnmarshalText([]byte("maybe")))
}
