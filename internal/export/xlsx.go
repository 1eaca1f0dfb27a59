package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/starford/bookbot/internal/session"
)

const sheetName = "Q&A History"

// XLSX renders the transcript as a single-sheet workbook.
type XLSX struct{}

func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (XLSX) FileName() string { return "qa_history.xlsx" }

// Export writes a header row followed by one row per pair.
func (XLSX) Export(w io.Writer, t session.Transcript) error {
	return write(w, t, renderXLSX)
}

func renderXLSX(buf *bytes.Buffer, pairs []session.QAPair) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("export: sheet: %w", err)
	}
	header := []any{"#", "Question", "Answer", "Asked at"}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "D1", bold); err != nil {
		return fmt.Errorf("export: style: %w", err)
	}
	if err := f.SetColWidth(sheetName, "B", "C", 60); err != nil {
		return fmt.Errorf("export: width: %w", err)
	}

	for i, p := range pairs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: cell: %w", err)
		}
		asked := ""
		if !p.AskedAt.IsZero() {
			asked = p.AskedAt.UTC().Format("2006-01-02 15:04:05")
		}
		row := []any{i + 1, p.Question, p.Answer, asked}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("export: row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(buf); err != nil {
		return fmt.Errorf("export: render xlsx: %w", err)
	}
	return nil
}
