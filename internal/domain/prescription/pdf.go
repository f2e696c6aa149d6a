package prescription

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/barangay/bhc/internal/domain/identity"
)

// Document is everything printed on a prescription slip.
type Document struct {
	ClinicName   string
	Prescription *Prescription
	Patient      *identity.Patient
	Doctor       *identity.Staff
	Location     *time.Location
}

// RenderPDF lays the prescription out on an A5 page.
func RenderPDF(doc Document) ([]byte, error) {
	loc := doc.Location
	if loc == nil {
		loc = time.UTC
	}
	rx := doc.Prescription
	issued := rx.IssuedAt.In(loc)

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetTitle("Prescription "+rx.ID.String(), true)
	pdf.SetCreator(doc.ClinicName, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Header
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(doc.ClinicName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, tr(doc.Doctor.DisplayName()), "", 1, "C", false, 0, "")
	if doc.Doctor.Specialization != nil {
		pdf.CellFormat(0, 5, tr(*doc.Doctor.Specialization), "", 1, "C", false, 0, "")
	}
	pdf.Ln(2)
	drawRule(pdf)

	// Patient block
	age := doc.Patient.AgeOn(issued)
	addDetail(pdf, tr, "Patient", doc.Patient.FullName())
	addDetail(pdf, tr, "Patient No.", doc.Patient.PatientNumber)
	addDetail(pdf, tr, "Age / Sex", fmt.Sprintf("%d / %s", age, sexInitial(doc.Patient.Sex)))
	if addr := address(doc.Patient); addr != "" {
		addDetail(pdf, tr, "Address", addr)
	}
	addDetail(pdf, tr, "Date", issued.Format("January 2, 2006"))
	if rx.Diagnosis != nil {
		addDetail(pdf, tr, "Diagnosis", *rx.Diagnosis)
	}
	pdf.Ln(2)
	drawRule(pdf)

	if rx.Status == StatusCancelled {
		pdf.SetTextColor(200, 0, 0)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "CANCELLED", "", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}

	// Items
	pdf.SetFont("Times", "BI", 22)
	pdf.CellFormat(0, 10, "Rx", "", 1, "L", false, 0, "")
	for _, it := range rx.Items {
		pdf.SetFont("Helvetica", "B", 10)
		line := fmt.Sprintf("%d. %s", it.LineNo, it.Medicine)
		if it.Strength != nil {
			line += " " + *it.Strength
		}
		if it.Quantity != nil {
			line += fmt.Sprintf("   #%d", *it.Quantity)
		}
		pdf.MultiCell(0, 5, tr(line), "", "L", false)

		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 5, tr("    Sig: "+sig(it)), "", "L", false)
		if it.Instructions != nil {
			pdf.MultiCell(0, 5, tr("    "+*it.Instructions), "", "L", false)
		}
		pdf.Ln(1)
	}
	if rx.Notes != nil {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, tr("Notes: "+*rx.Notes), "", "L", false)
	}

	// Signature
	pdf.SetY(pdf.GetY() + 15)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 5, tr(doc.Doctor.DisplayName()), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	license := "-"
	if doc.Doctor.LicenseNumber != nil {
		license = *doc.Doctor.LicenseNumber
	}
	pdf.CellFormat(0, 5, tr("License No. "+license), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render prescription pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func addDetail(pdf *gofpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(25, 5, label+":", "", 0, "", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 5, tr(value), "", "L", false)
}

func drawRule(pdf *gofpdf.Fpdf) {
	w, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	y := pdf.GetY()
	pdf.Line(left, y, w-right, y)
	pdf.Ln(2)
}

func sexInitial(sex string) string {
	if sex == "" {
		return "-"
	}
	return strings.ToUpper(sex[:1])
}

func sig(it Item) string {
	parts := []string{it.Dosage}
	if it.Frequency != nil {
		parts = append(parts, *it.Frequency)
	}
	if it.Duration != nil {
		parts = append(parts, "for "+*it.Duration)
	}
	return strings.Join(parts, ", ")
}

func address(p *identity.Patient) string {
	var parts []string
	for _, s := range []*string{p.AddressLine, p.Purok, p.Barangay, p.Municipality, p.Province} {
		if s != nil && *s != "" {
			parts = append(parts, *s)
		}
	}
	return strings.Join(parts, ", ")
}

// FileName is the suggested download name, e.g. rx-BHC-2026-000042-20260302.pdf.
func FileName(p *identity.Patient, rx *Prescription, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("rx-%s-%s.pdf", p.PatientNumber, rx.IssuedAt.In(loc).Format("20060102"))
}
