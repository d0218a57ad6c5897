package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/BuildWithRajdeep/Blockchain-Document-Verification/internal/service"
)

// Services bundles the use-case layer handed to the HTTP routes.
type Services struct {
	Registration service.RegistrationService
	Verification service.VerificationService
	Queries      service.QueryService
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin; all business rules live in the service layer.
func RegisterRoutes(app *fiber.App, db *sql.DB, svcs Services, gatherer prometheus.Gatherer) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	// Prometheus exposition
	if gatherer != nil {
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(
			promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		)
		app.Get("/metrics", func(c *fiber.Ctx) error {
			metricsHandler(c.Context())
			return nil
		})
	}

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Post("/documents", RegisterDocument(svcs.Registration))
	app.Get("/documents", ListDocuments(svcs.Queries))
	app.Get("/documents/export", ExportDocumentsCSV(svcs.Queries))
	app.Post("/documents/:id/content", ArchiveDocument(svcs.Registration))
	app.Get("/documents/:id/content-url", ArchiveLink(svcs.Registration))

	app.Post("/verify", VerifyDocument(svcs.Verification))
	app.Get("/verifications", ListVerifications(svcs.Queries))
}
