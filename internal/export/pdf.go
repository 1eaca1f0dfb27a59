package export

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/starford/bookbot/internal/session"
)

// DejaVu covers Latin, Cyrillic and the modifier letters used in Uzbek
// (oʻ, gʻ), which the core PDF fonts cannot encode.
var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	fontRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	fontBold []byte
)

const fontFamily = "DejaVu"

// PDF renders the transcript as an A4 document.
type PDF struct{}

func (PDF) ContentType() string { return "application/pdf" }
func (PDF) FileName() string    { return "qa_history.pdf" }

// Export writes one section per pair: the question in bold, then the answer.
func (PDF) Export(w io.Writer, t session.Transcript) error {
	return write(w, t, renderPDF)
}

func renderPDF(buf *bytes.Buffer, pairs []session.QAPair) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddUTF8FontFromBytes(fontFamily, "", fontRegular)
	doc.AddUTF8FontFromBytes(fontFamily, "B", fontBold)
	if err := doc.Error(); err != nil {
		return fmt.Errorf("export: load font: %w", err)
	}
	doc.SetTitle(Title, true)
	doc.SetAutoPageBreak(true, 15)

	doc.AddPage()
	doc.SetFont(fontFamily, "B", 16)
	doc.CellFormat(0, 10, Title, "", 1, "C", false, 0, "")
	doc.Ln(5)

	for _, p := range pairs {
		doc.SetFont(fontFamily, "B", 12)
		doc.MultiCell(0, 7, "Question: "+p.Question, "", "L", false)
		doc.SetFont(fontFamily, "", 12)
		doc.MultiCell(0, 7, "Answer: "+p.Answer, "", "L", false)
		doc.Ln(4)
	}

	if err := doc.Output(buf); err != nil {
		return fmt.Errorf("export: render pdf: %w", err)
	}
	return nil
}
