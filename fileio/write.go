package fileio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/A-tamer/hospital-management-system/model"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Patients"

// ExportDocument is the JSON export layout. ReadJSON reads it back as
// reconcile.JSONExport.
type ExportDocument struct {
	Patients   []model.Patient `json:"patients"`
	ExportedAt time.Time       `json:"exportedAt"`
	Count      int             `json:"count"`
}

// Write encodes patients in format. Cost fields are dropped unless financial.
func Write(w io.Writer, format Format, patients []model.Patient, now time.Time, financial bool) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, patients, now, financial)
	case FormatCSV:
		return WriteCSV(w, patients, financial)
	case FormatXLSX:
		return WriteXLSX(w, patients, financial)
	}
	return fmt.Errorf("unsupported format %q", format)
}

// WriteJSON writes the lossless export document.
func WriteJSON(w io.Writer, patients []model.Patient, now time.Time, financial bool) error {
	doc := ExportDocument{
		Patients:   redact(patients, financial),
		ExportedAt: now,
		Count:      len(patients),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteCSV writes one row per patient with a UTF-8 byte order mark so
// spreadsheet programs detect the Arabic text.
func WriteCSV(w io.Writer, patients []model.Patient, financial bool) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(columns(financial)); err != nil {
		return err
	}
	for _, p := range patients {
		if err := cw.Write(row(p, financial)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a single worksheet workbook.
func WriteXLSX(w io.Writer, patients []model.Patient, financial bool) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	if err := setRow(f, 1, columns(financial)); err != nil {
		return err
	}
	for i, p := range patients {
		if err := setRow(f, i+2, row(p, financial)); err != nil {
			return err
		}
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

func setRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheetName, cell, &cells)
}

func columns(financial bool) []string {
	cols := []string{
		"Code", "Name (Arabic)", "Gender", "Date of Birth", "Age", "Diagnosis", "Status",
		"Visit Date", "Phone", "Notes", "Surgeries", "Follow-ups",
	}
	if financial {
		cols = append(cols, "Total Cost")
	}
	return append(cols, "Created At")
}

func row(p model.Patient, financial bool) []string {
	phone := ""
	if v, ok := p.ContactInfo["phone"]; ok && v != nil {
		phone = fmt.Sprint(v)
	}
	diagnosis := strings.Join(p.Diagnoses, "; ")
	cells := []string{
		p.Code,
		p.FullNameArabic,
		p.Gender,
		p.DateOfBirth,
		strconv.FormatFloat(p.Age, 'f', -1, 64),
		diagnosis,
		p.Status,
		p.VisitedDate,
		phone,
		p.Notes,
		strconv.Itoa(len(p.Surgeries)),
		strconv.Itoa(len(p.FollowUps)),
	}
	if financial {
		cells = append(cells, strconv.FormatFloat(p.TotalSurgeryCost(), 'f', 2, 64))
	}
	return append(cells, p.CreatedAt.UTC().Format(time.RFC3339))
}

func redact(patients []model.Patient, financial bool) []model.Patient {
	if patients == nil {
		return []model.Patient{}
	}
	if financial {
		return patients
	}
	out := make([]model.Patient, len(patients))
	for i, p := range patients {
		out[i] = p.WithoutFinancial()
	}
	return out
}
