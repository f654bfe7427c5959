package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/servitec-app/informes-server/internal/models"
	"github.com/servitec-app/informes-server/internal/repository"
	"github.com/servitec-app/informes-server/internal/services/document"
	"github.com/servitec-app/informes-server/internal/services/mailer"
)

const (
	maxMultipartMemory = 32 << 20 // in-memory threshold for multipart parsing
	maxFileSize        = 15 << 20
	maxFilesPerField   = 20
)

// fieldError is one itemized validation failure
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// createReport handles a multipart report submission: store assets, insert
// the draft record, render and store the PDF, attach it, then notify.
func (r *Router) createReport(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(maxMultipartMemory); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	report := &models.ServiceReport{
		ID:            uuid.New().String(),
		ReportNumber:  strings.TrimSpace(req.FormValue("numeroReporte")),
		Technician:    strings.TrimSpace(req.FormValue("tecnico")),
		Client:        strings.TrimSpace(req.FormValue("cliente")),
		Phone:         strings.TrimSpace(req.FormValue("telefono")),
		EquipmentType: strings.TrimSpace(req.FormValue("tipoEquipo")),
		ServiceType:   strings.TrimSpace(req.FormValue("tipoServicio")),
		Diagnosis:     req.FormValue("diagnostico"),
		WorkPerformed: req.FormValue("trabajoRealizado"),
		Observations:  req.FormValue("observaciones"),
		Status:        models.StatusPending,
	}

	if errs := validateReport(report, req.MultipartForm); len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"ok":     false,
			"errors": errs,
		})
		return
	}

	ctx := req.Context()
	ns := "informes/" + report.ID

	// Signatures arrive as base64 data URLs drawn on a canvas
	for _, sig := range []struct {
		field string
		name  string
		dest  *string
	}{
		{"firmaTecnico", "firma_tecnico", &report.TechnicianSignature},
		{"firmaCliente", "firma_cliente", &report.ClientSignature},
	} {
		raw := req.FormValue(sig.field)
		if raw == "" {
			continue
		}
		data, ext, err := decodeDataURL(raw)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to decode "+sig.field+": "+err.Error())
			return
		}
		ref, err := r.store.Store(ctx, ns, sig.name+ext, data, "image/"+strings.TrimPrefix(ext, "."))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to store signature: "+err.Error())
			return
		}
		*sig.dest = ref
	}

	photoRefs, err := r.saveUploads(req, ns, "fotos", "foto")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to store photos: "+err.Error())
		return
	}
	report.SetPhotoRefs(photoRefs)

	attachmentRefs, err := r.saveUploads(req, ns, "anexos", "anexo")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to store attachments: "+err.Error())
		return
	}
	report.SetAttachmentRefs(attachmentRefs)

	if err := r.repo.Insert(ctx, report); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save report: "+err.Error())
		return
	}

	// From here on the draft exists; a failure leaves it with an empty PDF
	// reference, which readers treat as "rendering in progress".
	pdfName := fmt.Sprintf("informe_%s.pdf", report.ID)
	pdfRef := ns + "/" + pdfName
	viewURL := r.cfg.BaseURL + "/api/informes/" + report.ID + "/view"
	pdfURL := r.store.PublicURL(pdfRef)

	photos, skippedFetch := document.LoadAssets(ctx, r.store, report.PhotoRefs())
	techSig, techSkipped := document.LoadOptional(ctx, r.store, report.TechnicianSignature)
	clientSig, clientSkipped := document.LoadOptional(ctx, r.store, report.ClientSignature)
	for _, s := range []*document.SkippedAsset{techSkipped, clientSkipped} {
		if s != nil {
			skippedFetch = append(skippedFetch, *s)
		}
	}

	result, err := r.gen.Generate(document.Input{
		Report:              report,
		Photos:              photos,
		TechnicianSignature: techSig,
		ClientSignature:     clientSig,
		ViewURL:             viewURL,
		PDFURL:              pdfURL,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to render PDF: "+err.Error())
		return
	}
	for _, s := range append(skippedFetch, result.Skipped...) {
		log.Printf("⚠️  Report %s: asset %s omitted (%s)", report.ID, s.Name, s.Reason)
	}

	if _, err := r.store.Store(ctx, ns, pdfName, result.PDF, "application/pdf"); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to store PDF: "+err.Error())
		return
	}

	if err := r.repo.AttachDocument(ctx, report.ID, pdfRef); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update report: "+err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":       true,
		"id":       report.ID,
		"pdf_url":  pdfURL,
		"view_url": viewURL,
	})

	// Best effort, after the response-determining work is done
	if err := r.mailer.Send(mailer.Notification{
		ReportNumber: report.ReportNumber,
		Technician:   report.Technician,
		Client:       report.Client,
		ViewURL:      viewURL,
		PDFURL:       pdfURL,
		PDF:          result.PDF,
	}); err != nil {
		log.Printf("⚠️  Notification for report %s failed: %v", report.ID, err)
	}
}

// listReports returns reports newest first, optionally filtered
func (r *Router) listReports(w http.ResponseWriter, req *http.Request) {
	filter, err := parseListFilter(req.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reports, err := r.repo.List(req.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch reports: "+err.Error())
		return
	}
	if reports == nil {
		reports = []models.ServiceReport{}
	}
	respondJSON(w, http.StatusOK, reports)
}

// getReport returns a single report by id
func (r *Router) getReport(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	report, err := r.repo.Get(req.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Informe no encontrado")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch report: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

var viewTemplate = template.Must(template.New("view").Parse(`<!DOCTYPE html>
<html lang="es">
<head><meta charset="utf-8"><title>Informe N° {{.Report.ReportNumber}}</title></head>
<body>
<h1>Informe de Servicio N° {{.Report.ReportNumber}}</h1>
<p><b>Fecha:</b> {{.Date}}<br>
<b>Técnico:</b> {{.Report.Technician}}<br>
<b>Cliente:</b> {{.Report.Client}}</p>
{{if .PDFURL}}<p><a href="{{.PDFURL}}">Descargar PDF</a></p>{{else}}<p>Documento en proceso…</p>{{end}}
{{range .PhotoURLs}}<img src="{{.}}" width="320" style="margin:4px">{{end}}
</body>
</html>`))

// viewReport renders the minimal online view page the footer QR points at
func (r *Router) viewReport(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	report, err := r.repo.Get(req.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		http.NotFound(w, req)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch report: "+err.Error())
		return
	}

	pdfURL := ""
	if report.PDFRef != "" {
		pdfURL = r.store.PublicURL(report.PDFRef)
	}
	photoURLs := make([]string, 0, len(report.PhotoRefs()))
	for _, ref := range report.PhotoRefs() {
		photoURLs = append(photoURLs, r.store.PublicURL(ref))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := viewTemplate.Execute(w, map[string]interface{}{
		"Report":    report,
		"Date":      report.CreatedAt.Format("02/01/2006 15:04"),
		"PDFURL":    pdfURL,
		"PhotoURLs": photoURLs,
	}); err != nil {
		log.Printf("⚠️  View page for report %s failed: %v", id, err)
	}
}

// validateReport checks the canonical required fields and upload limits
func validateReport(report *models.ServiceReport, form *multipart.Form) []fieldError {
	var errs []fieldError
	if report.ReportNumber == "" {
		errs = append(errs, fieldError{"numeroReporte", "El número de reporte es obligatorio"})
	}
	if report.Technician == "" {
		errs = append(errs, fieldError{"tecnico", "El nombre del técnico es obligatorio"})
	}
	if report.Client == "" {
		errs = append(errs, fieldError{"cliente", "El nombre del cliente es obligatorio"})
	}

	if form != nil {
		for _, field := range []string{"fotos", "anexos"} {
			files := form.File[field]
			if len(files) > maxFilesPerField {
				errs = append(errs, fieldError{field, fmt.Sprintf("Máximo %d archivos por campo", maxFilesPerField)})
				continue
			}
			for _, fh := range files {
				if fh.Size > maxFileSize {
					errs = append(errs, fieldError{field, fmt.Sprintf("El archivo %s supera el límite de %d MB", fh.Filename, maxFileSize>>20)})
				}
			}
		}
	}
	return errs
}

// saveUploads stores every file of a multipart field, preserving order
func (r *Router) saveUploads(req *http.Request, ns, field, prefix string) ([]string, error) {
	if req.MultipartForm == nil {
		return nil, nil
	}
	files := req.MultipartForm.File[field]
	refs := make([]string, 0, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, maxFileSize+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}

		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if ext == "" {
			ext = ".bin"
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		name := fmt.Sprintf("%s_%d%s", prefix, i+1, ext)
		ref, err := r.store.Store(req.Context(), ns, name, data, contentType)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// decodeDataURL decodes a base64 data URL ("data:image/png;base64,....")
// into raw bytes and a file extension. Bare base64 is accepted as PNG.
func decodeDataURL(s string) ([]byte, string, error) {
	ext := ".png"
	payload := s
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		meta := s[len("data:"):idx]
		payload = s[idx+1:]
		if strings.HasPrefix(meta, "image/jpeg") {
			ext = ".jpg"
		}
		if !strings.Contains(meta, "base64") {
			return nil, "", fmt.Errorf("unsupported data URL encoding")
		}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, ext, nil
}

// parseListFilter maps query parameters onto a repository filter. Date
// bounds are whole days: the upper bound includes the named day.
func parseListFilter(q url.Values) (repository.Filter, error) {
	f := repository.Filter{
		Technician: firstOf(q, "tecnico", "technician"),
		Status:     q.Get("status"),
	}

	if raw := firstOf(q, "desde", "from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", raw)
		}
		f.From = &t
	}
	if raw := firstOf(q, "hasta", "to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", raw)
		}
		end := t.Add(24 * time.Hour)
		f.To = &end
	}
	return f, nil
}

func firstOf(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}
