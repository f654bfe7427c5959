package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/jung-kurt/gofpdf"

	"github.com/servitec-app/informes-server/internal/models"
)

// Page geometry in millimeters (A4 portrait)
const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	marginLeft   = 15.0
	marginTop    = 15.0
	marginRight  = 15.0
	marginBottom = 20.0

	photoBoxW = 55.0
	photoBoxH = 45.0
	photoGap  = 5.0

	signatureW = 60.0
	signatureH = 25.0

	qrSize = 24.0
)

// Asset is an image payload resolved for embedding
type Asset struct {
	Name string
	Data []byte
}

// SkippedAsset records an image that was left out of the document and why.
// Rendering never aborts for a missing or broken image.
type SkippedAsset struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Input carries a report plus its resolved asset bytes
type Input struct {
	Report              *models.ServiceReport
	Photos              []Asset
	TechnicianSignature []byte
	ClientSignature     []byte
	ViewURL             string
	PDFURL              string
}

// Result is the rendered document plus the list of omitted assets
type Result struct {
	PDF     []byte
	Skipped []SkippedAsset
}

// Generator renders service reports as paginated A4 PDFs
type Generator struct {
	appName string
}

// NewGenerator creates a PDF generator carrying the application display name
func NewGenerator(appName string) *Generator {
	return &Generator{appName: appName}
}

// Generate renders the report in a single deterministic pass: header,
// labeled text fields, photo grid, signatures, QR footer.
func (g *Generator) Generate(in Input) (*Result, error) {
	rep := in.Report

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.AddPage()

	// Core fonts are cp1252; translate for accented field values
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	result := &Result{}

	g.writeHeader(pdf, tr, rep)
	g.writeFields(pdf, tr, rep)
	g.writePhotoGrid(pdf, tr, in.Photos, result)
	g.writeSignatures(pdf, tr, in.TechnicianSignature, in.ClientSignature, result)
	g.writeQRFooter(pdf, tr, in.ViewURL, in.PDFURL, result)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	result.PDF = buf.Bytes()
	return result, nil
}

func (g *Generator) writeHeader(pdf *gofpdf.Fpdf, tr func(string) string, rep *models.ServiceReport) {
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(g.appName), "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, tr("Informe de Servicio N° "+rep.ReportNumber), "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr("Fecha: "+rep.CreatedAt.Format("02/01/2006 15:04")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Técnico: "+orDash(rep.Technician)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Teléfono: "+orDash(rep.Phone)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Cliente: "+orDash(rep.Client)), "", 1, "L", false, 0, "")

	pdf.Ln(2)
	pdf.SetDrawColor(120, 120, 120)
	pdf.Line(marginLeft, pdf.GetY(), pageWidth-marginRight, pdf.GetY())
	pdf.Ln(4)
}

func (g *Generator) writeFields(pdf *gofpdf.Fpdf, tr func(string) string, rep *models.ServiceReport) {
	fields := []struct {
		label string
		value string
	}{
		{"Tipo de equipo", rep.EquipmentType},
		{"Tipo de servicio", rep.ServiceType},
		{"Diagnóstico", rep.Diagnosis},
		{"Trabajo realizado", rep.WorkPerformed},
		{"Observaciones", rep.Observations},
	}

	for _, f := range fields {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 7, tr(f.label), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, tr(orDash(f.value)), "", "J", false)
		pdf.Ln(2)
	}
}

// writePhotoGrid places photos in fixed-size boxes, wrapping rows at the
// right margin and adding pages at the bottom margin. Broken images are
// skipped and recorded; an empty photo list skips the section entirely.
func (g *Generator) writePhotoGrid(pdf *gofpdf.Fpdf, tr func(string) string, photos []Asset, result *Result) {
	usable := make([]Asset, 0, len(photos))
	types := make([]string, 0, len(photos))
	for _, p := range photos {
		imgType, err := detectImageType(p.Data)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedAsset{Name: p.Name, Reason: err.Error()})
			continue
		}
		usable = append(usable, p)
		types = append(types, imgType)
	}
	if len(usable) == 0 {
		return
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, tr("Registro fotográfico"), "", 1, "L", false, 0, "")
	pdf.Ln(1)

	pdf.SetAutoPageBreak(false, marginBottom)
	defer pdf.SetAutoPageBreak(true, marginBottom)

	x := marginLeft
	y := pdf.GetY()

	for i, p := range usable {
		if x+photoBoxW > pageWidth-marginRight {
			x = marginLeft
			y += photoBoxH + photoGap
		}
		if y+photoBoxH > pageHeight-marginBottom {
			pdf.AddPage()
			x = marginLeft
			y = marginTop
		}

		imgName := fmt.Sprintf("photo_%d", i)
		opts := gofpdf.ImageOptions{ImageType: types[i], ReadDpi: true}
		pdf.RegisterImageOptionsReader(imgName, opts, bytes.NewReader(p.Data))
		if pdf.Err() {
			// gofpdf could not parse what the stdlib decoder accepted
			result.Skipped = append(result.Skipped, SkippedAsset{Name: p.Name, Reason: pdf.Error().Error()})
			pdf.ClearError()
			continue
		}
		pdf.ImageOptions(imgName, x, y, photoBoxW, photoBoxH, false, opts, 0, "")

		x += photoBoxW + photoGap
	}

	pdf.SetXY(marginLeft, y+photoBoxH+photoGap)
}

func (g *Generator) writeSignatures(pdf *gofpdf.Fpdf, tr func(string) string, techSig, clientSig []byte, result *Result) {
	if techSig == nil && clientSig == nil {
		return
	}

	if pdf.GetY()+signatureH+12 > pageHeight-marginBottom {
		pdf.AddPage()
	}
	y := pdf.GetY() + 4

	g.placeSignature(pdf, tr, "sig_tech", techSig, marginLeft+5, y, "Firma del técnico", result)
	g.placeSignature(pdf, tr, "sig_client", clientSig, pageWidth-marginRight-signatureW-5, y, "Firma del cliente", result)

	pdf.SetXY(marginLeft, y+signatureH+10)
}

func (g *Generator) placeSignature(pdf *gofpdf.Fpdf, tr func(string) string, id string, data []byte, x, y float64, caption string, result *Result) {
	if data == nil {
		return
	}
	imgType, err := detectImageType(data)
	if err != nil {
		result.Skipped = append(result.Skipped, SkippedAsset{Name: id, Reason: err.Error()})
		return
	}

	opts := gofpdf.ImageOptions{ImageType: imgType, ReadDpi: true}
	pdf.RegisterImageOptionsReader(id, opts, bytes.NewReader(data))
	if pdf.Err() {
		result.Skipped = append(result.Skipped, SkippedAsset{Name: id, Reason: pdf.Error().Error()})
		pdf.ClearError()
		return
	}
	pdf.ImageOptions(id, x, y, signatureW, signatureH, false, opts, 0, "")

	pdf.Line(x, y+signatureH+1, x+signatureW, y+signatureH+1)
	pdf.SetFont("Arial", "", 9)
	pdf.SetXY(x, y+signatureH+2)
	pdf.CellFormat(signatureW, 5, tr(caption), "", 0, "C", false, 0, "")
}

// writeQRFooter drops a QR code linking the online view and the PDF into
// the bottom-right corner of the final page. Encoding failure is recorded
// and swallowed so document production never aborts here.
func (g *Generator) writeQRFooter(pdf *gofpdf.Fpdf, tr func(string) string, viewURL, pdfURL string, result *Result) {
	png, err := EncodeQR(QRPayload(viewURL, pdfURL), DefaultQROptions())
	if err != nil {
		result.Skipped = append(result.Skipped, SkippedAsset{Name: "qr", Reason: err.Error()})
		return
	}

	x := pageWidth - marginRight - qrSize
	y := pageHeight - marginBottom - qrSize

	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("qr_footer", opts, bytes.NewReader(png))
	if pdf.Err() {
		result.Skipped = append(result.Skipped, SkippedAsset{Name: "qr", Reason: pdf.Error().Error()})
		pdf.ClearError()
		return
	}
	pdf.ImageOptions("qr_footer", x, y, qrSize, qrSize, false, opts, 0, "")

	pdf.SetFont("Arial", "", 7)
	pdf.SetXY(x-2, y+qrSize)
	pdf.CellFormat(qrSize+4, 4, tr("Ver en línea"), "", 0, "C", false, 0, "")
}

// detectImageType maps sniffed content types onto gofpdf image types and
// verifies the payload actually decodes.
func detectImageType(data []byte) (string, error) {
	var imgType string
	switch http.DetectContentType(data) {
	case "image/png":
		imgType = "PNG"
	case "image/jpeg":
		imgType = "JPG"
	default:
		return "", fmt.Errorf("unsupported image type")
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("broken image: %v", err)
	}
	return imgType, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
