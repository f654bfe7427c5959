package document

import (
	"image/color"

	qrcode "github.com/skip2/go-qrcode"
)

// QROptions are pass-through style options for QR generation
type QROptions struct {
	Size          int
	Level         qrcode.RecoveryLevel
	Foreground    color.Color
	Background    color.Color
	DisableBorder bool
}

// DefaultQROptions returns the footer style used on rendered reports
func DefaultQROptions() QROptions {
	return QROptions{
		Size:       256,
		Level:      qrcode.Medium,
		Foreground: color.Black,
		Background: color.White,
	}
}

// QRPayload joins the online view URL and the document URL into the single
// string encoded in the footer QR code.
func QRPayload(viewURL, pdfURL string) string {
	return viewURL + "|" + pdfURL
}

// EncodeQR produces a PNG QR image. Deterministic for identical input and
// options.
func EncodeQR(text string, opts QROptions) ([]byte, error) {
	q, err := qrcode.New(text, opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Foreground != nil {
		q.ForegroundColor = opts.Foreground
	}
	if opts.Background != nil {
		q.BackgroundColor = opts.Background
	}
	q.DisableBorder = opts.DisableBorder
	return q.PNG(opts.Size)
}
