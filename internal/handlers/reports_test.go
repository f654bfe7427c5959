package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/servitec-app/informes-server/internal/config"
	"github.com/servitec-app/informes-server/internal/models"
	"github.com/servitec-app/informes-server/internal/repository"
	"github.com/servitec-app/informes-server/internal/services/document"
	"github.com/servitec-app/informes-server/internal/services/mailer"
	"github.com/servitec-app/informes-server/internal/storage"
)

// fakeRepo is an in-memory Reports double. Filter and aggregate SQL is
// PostgreSQL-only, so handler behavior is tested against this double.
type fakeRepo struct {
	reports map[string]*models.ServiceReport
	order   []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{reports: make(map[string]*models.ServiceReport)}
}

func (f *fakeRepo) Insert(ctx context.Context, r *models.ServiceReport) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	cp := *r
	f.reports[r.ID] = &cp
	f.order = append(f.order, r.ID)
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*models.ServiceReport, error) {
	r, ok := f.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRepo) List(ctx context.Context, filter repository.Filter) ([]models.ServiceReport, error) {
	var out []models.ServiceReport
	for _, id := range f.order {
		r := f.reports[id]
		if filter.Technician != "" && r.Technician != filter.Technician {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.From != nil && r.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !r.CreatedAt.Before(*filter.To) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRepo) AttachDocument(ctx context.Context, id, pdfRef string) error {
	r, ok := f.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.PDFRef = pdfRef
	r.Status = models.StatusSubmitted
	return nil
}

func (f *fakeRepo) CountByServiceType(ctx context.Context) ([]repository.StatCount, error) {
	return f.countBy(func(r *models.ServiceReport) string { return r.ServiceType })
}

func (f *fakeRepo) CountByTechnician(ctx context.Context) ([]repository.StatCount, error) {
	return f.countBy(func(r *models.ServiceReport) string { return r.Technician })
}

func (f *fakeRepo) countBy(key func(*models.ServiceReport) string) ([]repository.StatCount, error) {
	counts := make(map[string]int64)
	for _, r := range f.reports {
		k := key(r)
		if k == "" {
			k = "-"
		}
		counts[k]++
	}
	var out []repository.StatCount
	for k, v := range counts {
		out = append(out, repository.StatCount{Label: k, Total: v})
	}
	return out, nil
}

func newTestRouter(t *testing.T) (*Router, *fakeRepo, string) {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewLocalStore(dir, "http://localhost:3000")
	if err != nil {
		t.Fatalf("Failed to create local store: %v", err)
	}

	cfg := &config.Config{
		Port:    "3000",
		BaseURL: "http://localhost:3000",
		AppName: "Test App",
		Storage: config.StorageConfig{Backend: "local", PublicDir: dir},
	}

	repo := newFakeRepo()
	router := NewRouter(cfg, repo, store, document.NewGenerator(cfg.AppName), mailer.New(config.MailConfig{}, cfg.AppName))
	return router, repo, dir
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

type filePart struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files []filePart) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		fw.Write(f.data)
	}
	w.Close()

	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func validFields(t *testing.T) map[string]string {
	return map[string]string{
		"numeroReporte": "R-100",
		"tecnico":       "María Pérez",
		"cliente":       "ACME S.A.",
		"telefono":      "555-0101",
		"tipoEquipo":    "Compresor",
		"tipoServicio":  "Mantenimiento",
		"diagnostico":   "Desgaste",
		"firmaTecnico":  "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t)),
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	var body map[string]bool
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body["ok"] {
		t.Errorf("Expected {\"ok\": true}, got %s", rec.Body.String())
	}
}

func TestCreateReportHappyPath(t *testing.T) {
	router, repo, dir := newTestRouter(t)

	req := multipartRequest(t, "/api/informes", validFields(t), []filePart{
		{"fotos", "sitio.png", testPNG(t)},
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		OK      bool   `json:"ok"`
		ID      string `json:"id"`
		PDFURL  string `json:"pdf_url"`
		ViewURL string `json:"view_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if !resp.OK || resp.ID == "" || resp.PDFURL == "" || resp.ViewURL == "" {
		t.Fatalf("Incomplete response: %+v", resp)
	}

	// The returned id must be retrievable via the detail endpoint with a
	// non-empty document reference.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/informes/"+resp.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Detail status = %d, want 200", rec.Code)
	}
	var stored models.ServiceReport
	if err := json.Unmarshal(rec.Body.Bytes(), &stored); err != nil {
		t.Fatalf("Invalid detail JSON: %v", err)
	}
	if stored.PDFRef == "" {
		t.Error("Document reference must be non-null after the request completes")
	}
	if stored.Status != models.StatusSubmitted {
		t.Errorf("Status = %q, want %q", stored.Status, models.StatusSubmitted)
	}
	if len(stored.PhotoRefs()) != 1 {
		t.Errorf("Expected 1 photo reference, got %v", stored.PhotoRefs())
	}

	pdfPath := filepath.Join(dir, filepath.FromSlash(stored.PDFRef))
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatalf("Rendered PDF not found on disk: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("Stored artifact is not a PDF")
	}

	if len(repo.reports) != 1 {
		t.Errorf("Expected exactly one record, got %d", len(repo.reports))
	}
}

func TestCreateReportMissingRequiredFields(t *testing.T) {
	for _, missing := range []string{"numeroReporte", "tecnico", "cliente"} {
		t.Run(missing, func(t *testing.T) {
			router, repo, _ := newTestRouter(t)

			fields := validFields(t)
			delete(fields, missing)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, multipartRequest(t, "/api/informes", fields, nil))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Status = %d, want 400", rec.Code)
			}
			var resp struct {
				OK     bool         `json:"ok"`
				Errors []fieldError `json:"errors"`
			}
			json.Unmarshal(rec.Body.Bytes(), &resp)
			if resp.OK || len(resp.Errors) == 0 {
				t.Fatalf("Expected itemized errors, got %s", rec.Body.String())
			}
			if resp.Errors[0].Field != missing {
				t.Errorf("Errors[0].Field = %q, want %q", resp.Errors[0].Field, missing)
			}
			if len(repo.reports) != 0 {
				t.Error("No record may be created on validation failure")
			}
		})
	}
}

func TestCreateReportBrokenPhotoStillProducesDocument(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := multipartRequest(t, "/api/reports", validFields(t), []filePart{
		{"fotos", "ok.png", testPNG(t)},
		{"fotos", "broken.jpg", []byte("definitely not a jpeg")},
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID string `json:"id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/reports/"+resp.ID, nil))
	var stored models.ServiceReport
	json.Unmarshal(rec.Body.Bytes(), &stored)
	if stored.PDFRef == "" {
		t.Error("A broken photo must not prevent document production")
	}
}

// pdfFailStore delegates to a real store but refuses to persist the
// rendered document, exercising the window between insert and attach.
type pdfFailStore struct {
	storage.AssetStore
}

func (s *pdfFailStore) Store(ctx context.Context, ns, name string, data []byte, contentType string) (string, error) {
	if strings.HasSuffix(name, ".pdf") {
		return "", errors.New("disk full")
	}
	return s.AssetStore.Store(ctx, ns, name, data, contentType)
}

func TestCreateReportPDFStoreFailureLeavesDraft(t *testing.T) {
	dir := t.TempDir()
	base, err := storage.NewLocalStore(dir, "http://localhost:3000")
	if err != nil {
		t.Fatalf("Failed to create local store: %v", err)
	}

	cfg := &config.Config{
		Port:    "3000",
		BaseURL: "http://localhost:3000",
		AppName: "Test App",
		Storage: config.StorageConfig{Backend: "local", PublicDir: dir},
	}
	repo := newFakeRepo()
	router := NewRouter(cfg, repo, &pdfFailStore{AssetStore: base}, document.NewGenerator(cfg.AppName), mailer.New(config.MailConfig{}, cfg.AppName))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/api/informes", validFields(t), nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Status = %d, want 500 (body: %s)", rec.Code, rec.Body.String())
	}

	// The draft survives the failed second phase: empty document reference,
	// still pending, observable via the detail endpoint.
	if len(repo.reports) != 1 {
		t.Fatalf("Expected the inserted draft to remain, got %d records", len(repo.reports))
	}
	for id := range repo.reports {
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/informes/"+id, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Detail status = %d, want 200", rec.Code)
		}
		var stored models.ServiceReport
		json.Unmarshal(rec.Body.Bytes(), &stored)
		if stored.PDFRef != "" {
			t.Errorf("Document reference must stay empty after a failed render phase, got %q", stored.PDFRef)
		}
		if stored.Status != models.StatusPending {
			t.Errorf("Status = %q, want %q", stored.Status, models.StatusPending)
		}
	}
}

func TestGetReportNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/informes/no-such-id", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", rec.Code)
	}
}

func TestListReportsFilters(t *testing.T) {
	router, repo, _ := newTestRouter(t)

	seed := []*models.ServiceReport{
		{ID: "a", ReportNumber: "1", Technician: "Ana", Client: "C1", Status: models.StatusSubmitted},
		{ID: "b", ReportNumber: "2", Technician: "Ana", Client: "C2", Status: models.StatusPending},
		{ID: "c", ReportNumber: "3", Technician: "Luis", Client: "C3", Status: models.StatusSubmitted},
	}
	for i, r := range seed {
		r.CreatedAt = time.Date(2026, 3, 1+i, 0, 0, 0, 0, time.UTC)
		repo.Insert(context.Background(), r)
	}

	fetch := func(query string) []models.ServiceReport {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/informes"+query, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d for %q", rec.Code, query)
		}
		var out []models.ServiceReport
		json.Unmarshal(rec.Body.Bytes(), &out)
		return out
	}

	all := fetch("")
	if len(all) != 3 {
		t.Fatalf("Expected 3 reports, got %d", len(all))
	}
	if all[0].ID != "c" {
		t.Errorf("Expected newest first, got %s", all[0].ID)
	}

	byTech := fetch("?tecnico=" + url.QueryEscape("Ana"))
	if len(byTech) != 2 {
		t.Errorf("tecnico=Ana returned %d reports, want 2", len(byTech))
	}

	intersection := fetch("?tecnico=Ana&status=pending")
	if len(intersection) != 1 || intersection[0].ID != "b" {
		t.Errorf("Combined filters must intersect, got %+v", intersection)
	}
}

func TestStatsEndpoint(t *testing.T) {
	router, repo, _ := newTestRouter(t)

	repo.Insert(context.Background(), &models.ServiceReport{ID: "a", Technician: "Ana", ServiceType: "Mantenimiento"})
	repo.Insert(context.Background(), &models.ServiceReport{ID: "b", Technician: "Ana", ServiceType: "Reparación"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	var resp struct {
		OK              bool                   `json:"ok"`
		PorTipoServicio []repository.StatCount `json:"por_tipo_servicio"`
		PorTecnico      []repository.StatCount `json:"por_tecnico"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(resp.PorTipoServicio) != 2 {
		t.Errorf("Expected 2 service-type groups, got %v", resp.PorTipoServicio)
	}
	for _, row := range resp.PorTecnico {
		if row.Label == "Ana" && row.Total != 2 {
			t.Errorf("Ana should have 2 reports, got %d", row.Total)
		}
	}
}

func TestViewPage(t *testing.T) {
	router, repo, _ := newTestRouter(t)
	repo.Insert(context.Background(), &models.ServiceReport{
		ID: "v1", ReportNumber: "R-9", Technician: "Ana", Client: "ACME",
		PDFRef: "informes/v1/informe_v1.pdf",
	})
	repo.AttachDocument(context.Background(), "v1", "informes/v1/informe_v1.pdf")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/informes/v1/view", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "R-9") || !strings.Contains(body, "informe_v1.pdf") {
		t.Errorf("View page missing report data: %s", body)
	}
}

func TestParseListFilter(t *testing.T) {
	f, err := parseListFilter(url.Values{
		"technician": {"Ana"},
		"desde":      {"2026-03-01"},
		"hasta":      {"2026-03-05"},
	})
	if err != nil {
		t.Fatalf("parseListFilter failed: %v", err)
	}
	if f.Technician != "Ana" {
		t.Errorf("English alias not honored: %q", f.Technician)
	}
	if f.From == nil || !f.From.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Wrong lower bound: %v", f.From)
	}
	// Upper bound includes the whole named day
	if f.To == nil || !f.To.Equal(time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Wrong upper bound: %v", f.To)
	}

	if _, err := parseListFilter(url.Values{"desde": {"03/01/2026"}}); err == nil {
		t.Error("Expected error for malformed date")
	}
}

func TestDecodeDataURL(t *testing.T) {
	pngData := testPNG(t)
	enc := base64.StdEncoding.EncodeToString(pngData)

	data, ext, err := decodeDataURL("data:image/png;base64," + enc)
	if err != nil {
		t.Fatalf("decodeDataURL failed: %v", err)
	}
	if ext != ".png" || !bytes.Equal(data, pngData) {
		t.Errorf("Bad decode: ext=%s len=%d", ext, len(data))
	}

	_, ext, err = decodeDataURL("data:image/jpeg;base64," + enc)
	if err != nil || ext != ".jpg" {
		t.Errorf("JPEG data URL: ext=%s err=%v", ext, err)
	}

	if _, _, err := decodeDataURL("data:image/png;base64"); err == nil {
		t.Error("Expected error for malformed data URL")
	}
	if _, _, err := decodeDataURL("!!not-base64!!"); err == nil {
		t.Error("Expected error for invalid base64")
	}
}
