package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Certificate holds the fields printed on a submission verification document.
type Certificate struct {
	CertificateID   string
	FullName        string
	RollNumber      string
	BatchYear       string
	Email           string
	PlacementStatus string
	IssuedAt        time.Time
}

// CertificateRenderer lays out verification documents with gofpdf.
type CertificateRenderer struct {
	institution string
}

// NewCertificateRenderer constructs a renderer printing the given institution name.
func NewCertificateRenderer(institution string) *CertificateRenderer {
	if institution == "" {
		institution = "Dr. B R Ambedkar National Institute of Technology, Jalandhar"
	}
	return &CertificateRenderer{institution: institution}
}

// Render produces a single page PDF.
func (r *CertificateRenderer) Render(cert Certificate) ([]byte, error) {
	if cert.CertificateID == "" {
		return nil, fmt.Errorf("certificate id required")
	}
	if cert.IssuedAt.IsZero() {
		cert.IssuedAt = time.Now().UTC()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 8, tr(r.institution), "", "C", false)
	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 10, "Alumni Request Verification", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	rows := [][2]string{
		{"Certificate ID", cert.CertificateID},
		{"Full Name", cert.FullName},
		{"Roll Number", cert.RollNumber},
		{"Batch Year", cert.BatchYear},
		{"Email", cert.Email},
		{"Placement Status", cert.PlacementStatus},
		{"Issued On", cert.IssuedAt.Format("02 Jan 2006")},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(55, 9, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 9, tr(row[1]), "1", 1, "", false, 0, "")
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 9)
	pdf.MultiCell(0, 5, "This document confirms that the request and feedback above were received. It does not state the outcome of the review.", "", "L", false)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
