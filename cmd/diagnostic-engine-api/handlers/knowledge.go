package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/askmap/diagnostic-engine/internal/knowledgebase"
	"github.com/askmap/diagnostic-engine/internal/observability"
)

// KnowledgeHandler serves the knowledge-base export.
type KnowledgeHandler struct {
	logger *observability.Logger
	reader knowledgebase.Reader
	now    func() time.Time
}

// NewKnowledgeHandler creates a new knowledge handler.
func NewKnowledgeHandler(logger *observability.Logger, reader knowledgebase.Reader) *KnowledgeHandler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &KnowledgeHandler{logger: logger, reader: reader, now: time.Now}
}

// Export handles GET /knowledge/export as a JSON file download.
func (h *KnowledgeHandler) Export(w http.ResponseWriter, r *http.Request) {
	export, err := knowledgebase.ExportFrom(r.Context(), h.reader)
	if err != nil {
		h.logger.Error().Err(err).Msg("Knowledge export failed")
		writeError(w, http.StatusInternalServerError, "export failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, knowledgebase.FileName(h.now())))
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write export")
	}
}
