package exporting

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/remit/internal/invoices"
	"github.com/JaimeStill/remit/pkg/handlers"
	"github.com/JaimeStill/remit/pkg/routes"
)

// Handler provides HTTP endpoints for export operations.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "exporting"),
	}
}

// Routes returns the route group definition for export endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/exports",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Export},
		},
	}
}

// Export submits a batch of approved invoices by decoding an
// ExportCommand JSON body. Returns the batch id and covered invoices.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var cmd invoices.ExportCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.Export(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, invoices.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
