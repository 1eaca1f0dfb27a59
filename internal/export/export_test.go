package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/starford/bookbot/internal/apperr"
	"github.com/starford/bookbot/internal/pdftext"
	"github.com/starford/bookbot/internal/session"
)

func sample() session.Transcript {
	return session.NewTranscript(
		session.QAPair{Question: "What is the theme?", Answer: "Forgiveness between sisters."},
		session.QAPair{Question: "Who is Anna?", Answer: "The younger sister."},
	)
}

func TestForFormat(t *testing.T) {
	e, err := For("")
	require.NoError(t, err)
	assert.Equal(t, "qa_history.pdf", e.FileName())

	e, err = For("XLSX")
	require.NoError(t, err)
	assert.Equal(t, "qa_history.xlsx", e.FileName())

	_, err = For("docx")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedFormat)
}

func TestPDFContainsEachPairOnceInOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF{}.Export(&buf, sample()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	text, err := pdftext.Extract(buf.Bytes())
	require.NoError(t, err)
	assert.Contains(t, text, Title)
	assert.Equal(t, 1, strings.Count(text, "Question: What is the theme?"))
	assert.Equal(t, 1, strings.Count(text, "Question: Who is Anna?"))
	assert.Less(t, strings.Index(text, "What is the theme?"), strings.Index(text, "Who is Anna?"))
}

func TestPDFKeepsNonLatinText(t *testing.T) {
	tr := session.NewTranscript(
		session.QAPair{Question: "Это книга о чём?", Answer: "О прощении."},
		session.QAPair{Question: "Kitob nima haqida?", Answer: "Bu kitob togʻlar va oʻrmonlar haqida."},
	)
	var buf bytes.Buffer
	require.NoError(t, PDF{}.Export(&buf, tr))

	text, err := pdftext.Extract(buf.Bytes())
	require.NoError(t, err)
	for _, want := range []string{
		"Question: Это книга о чём?",
		"Answer: О прощении.",
		"togʻlar va oʻrmonlar",
	} {
		assert.Contains(t, text, want)
	}
}

func TestPDFKeepsRepeatedQuestions(t *testing.T) {
	tr := session.NewTranscript(
		session.QAPair{Question: "Again?", Answer: "Yes."},
		session.QAPair{Question: "Again?", Answer: "Yes."},
	)
	var buf bytes.Buffer
	require.NoError(t, PDF{}.Export(&buf, tr))
	text, err := pdftext.Extract(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(text, "Question: Again?"))
}

func TestXLSXRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSX{}.Export(&buf, sample()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"#", "Question", "Answer", "Asked at"}, rows[0])
	assert.Equal(t, "What is the theme?", rows[1][1])
	assert.Equal(t, "Forgiveness between sisters.", rows[1][2])
	assert.Equal(t, "2", rows[2][0])
}

func TestEmptyTranscriptWritesNothing(t *testing.T) {
	for _, e := range []Exporter{PDF{}, XLSX{}} {
		var buf bytes.Buffer
		err := e.Export(&buf, session.Transcript{})
		assert.ErrorIs(t, err, apperr.ErrEmptyTranscript)
		assert.Zero(t, buf.Len())
	}
}

func TestRenderFailureWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	err := write(&buf, sample(), func(b *bytes.Buffer, _ []session.QAPair) error {
		b.WriteString("partial")
		return errors.New("font missing")
	})
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}
