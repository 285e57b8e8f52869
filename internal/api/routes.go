package api

import (
	"net/http"

	"github.com/JaimeStill/remit/internal/config"
	"github.com/JaimeStill/remit/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
) {
	invoiceHandler := domain.Invoices.Handler()

	routes.Register(
		mux,
		domain.Intakes.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
		invoiceHandler.Routes(),
		invoiceHandler.IntakeRoutes(),
		domain.Pipeline.Handler().Routes(),
		domain.Exporting.Handler().Routes(),
		domain.Sandbox.Handler().Routes(),
	)
}
