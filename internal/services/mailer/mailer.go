package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/smtp"

	"github.com/servitec-app/informes-server/internal/config"
)

// Notification describes the email sent after a report is rendered
type Notification struct {
	ReportNumber string
	Technician   string
	Client       string
	ViewURL      string
	PDFURL       string
	PDF          []byte // optional attachment
}

// Mailer sends report notifications over SMTP. With no transport
// configured every Send is a silent no-op; the submission never depends
// on email delivery.
type Mailer struct {
	cfg     config.MailConfig
	appName string
}

// New creates a mailer for the given transport configuration
func New(cfg config.MailConfig, appName string) *Mailer {
	return &Mailer{cfg: cfg, appName: appName}
}

// Send delivers the notification to the configured recipient
func (m *Mailer) Send(n Notification) error {
	if !m.cfg.Enabled() || m.cfg.Recipient == "" {
		return nil
	}

	subject := fmt.Sprintf("%s - Informe N° %s", m.appName, n.ReportNumber)
	msg := m.buildMessage(m.cfg.Recipient, subject, n)

	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{m.cfg.Recipient}, msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

// buildMessage assembles a multipart/mixed MIME message with an HTML body
// and an optional PDF attachment.
func (m *Mailer) buildMessage(to, subject string, n Notification) []byte {
	var buf bytes.Buffer
	boundary := "----=_informes_0001"

	buf.WriteString(fmt.Sprintf("From: %s <%s>\r\n", m.appName, m.cfg.From))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	html := m.htmlBody(n)

	if len(n.PDF) > 0 {
		buf.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n\r\n", boundary))

		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		buf.WriteString(html)
		buf.WriteString("\r\n")

		filename := fmt.Sprintf("informe_%s.pdf", n.ReportNumber)
		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		buf.WriteString("Content-Type: application/pdf; name=\"" + filename + "\"\r\n")
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		buf.WriteString("Content-Disposition: attachment; filename=\"" + filename + "\"\r\n\r\n")
		writeBase64(&buf, n.PDF)
		buf.WriteString("\r\n")

		buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	} else {
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		buf.WriteString(html)
	}

	return buf.Bytes()
}

func (m *Mailer) htmlBody(n Notification) string {
	return fmt.Sprintf(`<html><body>
<h2>%s</h2>
<p>Se ha registrado el informe de servicio <b>N° %s</b>.</p>
<p>Técnico: %s<br>Cliente: %s</p>
<p><a href="%s">Ver informe en línea</a> &middot; <a href="%s">Descargar PDF</a></p>
</body></html>`, m.appName, n.ReportNumber, n.Technician, n.Client, n.ViewURL, n.PDFURL)
}

// writeBase64 encodes data with 76-character lines per RFC 2045
func writeBase64(buf *bytes.Buffer, data []byte) {
	encoded := base64.StdEncoding.EncodeToString(data)
	const lineLen = 76
	for i := 0; i < len(encoded); i += lineLen {
		end := i + lineLen
		if end > len(encoded) {
			end = len(encoded)
		}
		buf.WriteString(encoded[i:end])
		buf.WriteString("\r\n")
	}
}
