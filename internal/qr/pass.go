package qr

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/phpdave11/gofpdf"
)

// Pass describes the printable class pass handed to members.
type Pass struct {
	ClassName string
	VenueName string
	MemberID  string
	StartsAt  time.Time
	Token     string
}

// RenderPass writes an A4 PDF pass with the embedded QR code to w.
func RenderPass(w io.Writer, pass Pass) error {
	png, err := RenderPNG(pass.Token, 256)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Class Pass")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 10, fmt.Sprintf("Class: %s", pass.ClassName))
	pdf.Ln(8)
	if pass.VenueName != "" {
		pdf.Cell(0, 10, fmt.Sprintf("Venue: %s", pass.VenueName))
		pdf.Ln(8)
	}
	pdf.Cell(0, 10, fmt.Sprintf("Member: %s", pass.MemberID))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Starts: %s", pass.StartsAt.Format(time.RFC1123)))
	pdf.Ln(12)

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("qr", 150, 40, 40, 40, false, opts, 0, "")

	return pdf.Output(w)
}
