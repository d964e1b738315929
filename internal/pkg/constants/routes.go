package constants

// Static route constants
const (
	UploadsRoute = "/uploads"
	PublicRoute  = "/"
	// Upload path without leading slash for URL construction
	UploadsPath = "uploads"

	APIRoute     = "/api"
	APIv1Route   = "/api/v1"
	DocsRoute    = "/docs/api"
	HealthRoute  = "/healthz"
	MetricsRoute = "/metrics"
)
