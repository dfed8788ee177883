package config

// ServiceURLs contains URLs for downstream services based on environment.
type ServiceURLs struct {
	// CatalogueServiceBaseURL is the base URL for the catalogue API.
	CatalogueServiceBaseURL string
}

// GetServiceURLs returns environment-appropriate URLs for downstream services.
// Calling code does not need to know about the environment - it's handled internally.
//
// Example usage:
//
//	cfg, _ := config.Load()
//	urls := cfg.GetServiceURLs()
//	catalogueURL := urls.CatalogueServiceBaseURL
func (c *Config) GetServiceURLs() ServiceURLs {
	switch c.Environment.Environment {
	case NonProd:
		fallthrough
	case Prod:
		return ServiceURLs{
			CatalogueServiceBaseURL: "http://catalogue-service.selmag.svc.cluster.local:8081",
		}
	case Local:
		fallthrough
	default:
		return ServiceURLs{
			CatalogueServiceBaseURL: "http://localhost:8081",
		}
	}
}
