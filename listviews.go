package listviews

import "github.com/thrivehealth/go-listviews/service"

// Re-export the service package entry point so consumers can do
// `listviews.New(...)` without importing internal wiring helpers.
type (
	Service            = service.Service
	Config             = service.Config
	Commands           = service.Commands
	Queries            = service.Queries
	PreferenceResolver = service.PreferenceResolver
)

// New constructs the go-listviews runtime using the provided configuration.
func New(cfg Config) *Service {
	return service.New(cfg)
}
