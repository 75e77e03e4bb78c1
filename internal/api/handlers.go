package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/model"
)

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) initialData(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.InitialData())
}

// query parses the request parameters, writing a 400 on failure.
func (h *handler) query(w http.ResponseWriter, r *http.Request) (Query, bool) {
	q, err := ParseQuery(r.URL.Query(), h.svc.DefaultZoom())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query", err)
		return Query{}, false
	}
	return q, true
}

func (h *handler) mapData(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	data, err := h.svc.MapData(q)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

type coverageGridResponse struct {
	City           string                `json:"city"`
	CoverageGrid   []model.CoveragePoint `json:"coverage_grid"`
	ProcessingTime float64               `json:"processing_time"`
}

func (h *handler) coverageGrid(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	start := time.Now()
	points, err := h.svc.CoverageGrid(q)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, coverageGridResponse{
		City:           q.City,
		CoverageGrid:   points,
		ProcessingTime: time.Since(start).Seconds(),
	})
}

func (h *handler) heatmap(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Heatmap(q))
}

func (h *handler) polygons(w http.ResponseWriter, r *http.Request) {
	q, ok := h.query(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Polygons(q))
}

func (h *handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("api: request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal server error", err)
}
