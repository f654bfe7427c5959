package handlers

import (
	"net/http"

	"github.com/servitec-app/informes-server/internal/repository"
)

// getStats returns report counts grouped by service type and by technician
func (r *Router) getStats(w http.ResponseWriter, req *http.Request) {
	byService, err := r.repo.CountByServiceType(req.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to aggregate by service type: "+err.Error())
		return
	}
	byTechnician, err := r.repo.CountByTechnician(req.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to aggregate by technician: "+err.Error())
		return
	}

	if byService == nil {
		byService = []repository.StatCount{}
	}
	if byTechnician == nil {
		byTechnician = []repository.StatCount{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":                true,
		"por_tipo_servicio": byService,
		"por_tecnico":       byTechnician,
	})
}
