// Package render turns a gate-pass record into the printable A4 document that
// gets filed at the gate: letterhead, reference, basic details, the items
// table and three signature boxes. The record is consumed read-only; this
// package is the only place signature data URIs are ever decoded.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/dispatchworks/gatepass/internal/model"
)

// Letterhead is the organization block printed at the top of every pass.
type Letterhead struct {
	OrgName string
	Address string
	Phone   string
}

// Column layout of the items table, in millimetres on an A4 page.
var (
	colWidths  = []float64{20, 100, 30, 35}
	colHeaders = []string{"Qty", "Description", "Value", "Invoice No"}
)

const (
	sigBoxWidth   = 55.0
	sigBoxHeight  = 25.0
	sigBoxSpacing = 10.0
	sigStartX     = 15.0
)

// Document renders rec as a PDF.
func Document(rec *model.GatePassRecord, lh Letterhead) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 10, "ADVICE DISPATCH GATE PASS", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 8, strings.ToUpper(lh.OrgName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 6, lh.Address, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Tel: "+lh.Phone, "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Reference: "+rec.Reference, "", 1, "L", false, 0, "")
	pdf.Ln(5)
	rule(pdf)

	writeBasicInfo(pdf, rec)
	rule(pdf)
	writeItemsTable(pdf, rec.Items)
	pdf.Ln(12)
	rule(pdf)
	writeSignatures(pdf, rec)

	pdf.Ln(15)
	rule(pdf)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 5, "Generated on: "+time.Now().Format("2006-01-02 15:04:05"), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render gate pass %s: %w", rec.Reference, err)
	}
	return buf.Bytes(), nil
}

func rule(pdf *fpdf.Fpdf) {
	pdf.Line(10, pdf.GetY(), 200, pdf.GetY())
	pdf.Ln(8)
}

func writeBasicInfo(pdf *fpdf.Fpdf, rec *model.GatePassRecord) {
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "BASIC INFORMATION", "", 1, "L", false, 0, "")

	returnDate := rec.ReturnDate
	if returnDate == "" {
		returnDate = "Not specified"
	}
	rows := []struct{ label, value string }{
		{"Requested by:", rec.RequestedBy},
		{"Send to:", rec.SendTo},
		{"Purpose:", rec.Purpose},
		{"Return Date:", returnDate},
		{"Dispatch Type:", string(rec.DispatchType)},
		{"Vehicle Number:", rec.VehicleNumber},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(45, 7, row.label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		if len(row.value) > 60 {
			pdf.MultiCell(0, 7, row.value, "", "L", false)
			pdf.Ln(2)
		} else {
			pdf.CellFormat(0, 7, row.value, "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(8)
}

func writeItemsTable(pdf *fpdf.Fpdf, items []model.LineItem) {
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "ITEMS DISPATCH DETAILS", "", 1, "L", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 11)
	for i, h := range colHeaders {
		pdf.CellFormat(colWidths[i], 10, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, item := range items {
		desc := item.Description
		if len(desc) > 40 {
			desc = desc[:37] + "..."
		}
		pdf.CellFormat(colWidths[0], 8, item.Quantity, "1", 0, "C", false, 0, "")
		pdf.CellFormat(colWidths[1], 8, desc, "1", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths[2], 8, item.TotalValue, "1", 0, "C", false, 0, "")
		pdf.CellFormat(colWidths[3], 8, item.InvoiceNo, "1", 1, "C", false, 0, "")
	}
}

func writeSignatures(pdf *fpdf.Fpdf, rec *model.GatePassRecord) {
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "AUTHORIZATIONS & SIGNATURES", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	boxes := []struct {
		title     string
		label     string
		signature string
	}{
		{"CERTIFIED BY", "Certifying Officer", rec.CertifiedSignature},
		{"AUTHORIZED BY", "Authorizing Manager", rec.AuthorizedSignature},
		{"RECEIVED BY", "Receiving Party", rec.ReceivedSignature},
	}

	pdf.SetFont("Arial", "B", 11)
	for i, b := range boxes {
		pdf.SetXY(boxX(i), pdf.GetY())
		pdf.CellFormat(sigBoxWidth, 6, b.title, "", 0, "C", false, 0, "")
	}
	pdf.Ln(8)

	boxTop := pdf.GetY()
	for i, b := range boxes {
		x := boxX(i)
		pdf.Rect(x, boxTop, sigBoxWidth, sigBoxHeight, "D")
		if b.signature == "" {
			placeholder(pdf, x, boxTop, "Signature")
			continue
		}
		name := fmt.Sprintf("sig-%s-%d", rec.Reference, i)
		if err := embedSignature(pdf, name, b.signature, x, boxTop); err != nil {
			// A corrupt signature image should not sink the whole document.
			placeholder(pdf, x, boxTop, "SIGNED")
		}
	}
	pdf.SetY(boxTop + sigBoxHeight + 5)

	pdf.SetFont("Arial", "", 9)
	for i, b := range boxes {
		pdf.SetXY(boxX(i), pdf.GetY())
		pdf.CellFormat(sigBoxWidth, 5, b.label, "", 0, "C", false, 0, "")
	}
	pdf.Ln(8)
	for i := range boxes {
		x := boxX(i)
		pdf.Line(x+5, pdf.GetY(), x+sigBoxWidth-5, pdf.GetY())
	}
	pdf.Ln(5)
	pdf.SetFont("Arial", "I", 8)
	for i := range boxes {
		pdf.SetXY(boxX(i), pdf.GetY())
		pdf.CellFormat(sigBoxWidth, 4, "Name & Designation", "", 0, "C", false, 0, "")
	}
}

func boxX(i int) float64 {
	return sigStartX + float64(i)*(sigBoxWidth+sigBoxSpacing)
}

func placeholder(pdf *fpdf.Fpdf, x, boxTop float64, text string) {
	pdf.SetFont("Arial", "I", 8)
	pdf.SetXY(x, boxTop+10)
	pdf.CellFormat(sigBoxWidth, 5, text, "", 0, "C", false, 0, "")
}

// embedSignature decodes a "data:image/png;base64,..." string and draws it
// inside the signature box. The PNG header is validated before the image is
// registered: a failing register poisons the whole fpdf document, so bad
// input must be caught up front.
func embedSignature(pdf *fpdf.Fpdf, name, dataURI string, x, boxTop float64) error {
	_, payload, found := strings.Cut(dataURI, ",")
	if !found {
		return fmt.Errorf("signature is not a data URI")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if _, err := png.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("signature is not a PNG: %w", err)
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(raw))
	pdf.ImageOptions(name, x+2, boxTop+2, sigBoxWidth-4, sigBoxHeight-4, false, opts, 0, "")
	return nil
}
