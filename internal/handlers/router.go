package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/servitec-app/informes-server/internal/config"
	"github.com/servitec-app/informes-server/internal/repository"
	"github.com/servitec-app/informes-server/internal/services/document"
	"github.com/servitec-app/informes-server/internal/services/mailer"
	"github.com/servitec-app/informes-server/internal/storage"
)

// Router wraps the mux router and the injected dependencies
type Router struct {
	*mux.Router
	cfg    *config.Config
	repo   repository.Reports
	store  storage.AssetStore
	gen    *document.Generator
	mailer *mailer.Mailer
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(cfg *config.Config, repo repository.Reports, store storage.AssetStore, gen *document.Generator, m *mailer.Mailer) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		cfg:    cfg,
		repo:   repo,
		store:  store,
		gen:    gen,
		mailer: m,
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", r.healthCheck).Methods("GET")
	api.HandleFunc("/stats", r.getStats).Methods("GET")

	// Report routes, with the English alias kept for older clients
	for _, prefix := range []string{"/informes", "/reports"} {
		api.HandleFunc(prefix, r.createReport).Methods("POST")
		api.HandleFunc(prefix, r.listReports).Methods("GET")
		api.HandleFunc(prefix+"/{id}", r.getReport).Methods("GET")
		api.HandleFunc(prefix+"/{id}/view", r.viewReport).Methods("GET")
	}

	// Static assets for the local storage backend
	if cfg.Storage.Backend == "local" {
		fs := http.FileServer(http.Dir(cfg.Storage.PublicDir))
		r.PathPrefix("/public/").Handler(http.StripPrefix("/public/", fs))
	}

	return r
}

// Handler returns the root http.Handler
func (r *Router) Handler() http.Handler {
	return r.Router
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"ok":    false,
		"error": message,
	})
}
