package service

import (
	"context"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/thrivehealth/go-listviews/columns"
	"github.com/thrivehealth/go-listviews/command"
	"github.com/thrivehealth/go-listviews/listquery"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/preferences"
	"github.com/thrivehealth/go-listviews/query"
	"github.com/thrivehealth/go-listviews/scope"
)

// Service is the entry point for go-listviews. It wires repositories,
// registries, hooks, and command/query facades supplied by the host
// application.
type Service struct {
	cfg          Config
	commands     Commands
	queries      Queries
	activityRepo types.ActivityRepository
	prefResolver PreferenceResolver
	catalog      *columns.Resolver
	scopeGuard   scope.Guard
}

// Commands exposes the service command handlers.
type Commands struct {
	SavePreference     *command.SavePreferenceCommand
	ResetPreference    *command.ResetPreferenceCommand
	DefineAttribute    *command.DefineAttributeCommand
	SetAttributeValues *command.SetAttributeValuesCommand
	LogActivity        *command.ActivityLogCommand
}

// Queries exposes read-model helpers.
type Queries struct {
	Preference       *query.ResolvePreferenceQuery
	AvailableColumns *query.AvailableColumnsQuery
	ListRecords      *query.ListRecordsQuery
	ActivityFeed     *query.ActivityFeedQuery
}

// Config captures all required dependencies so callers can provide their own
// instances (bun.DB backed registries, cached repositories, hooks, etc.).
type Config struct {
	AttributeRegistry    types.AttributeRegistry
	PreferenceRepository types.PreferenceRepository
	PreferenceResolver   PreferenceResolver
	PermissionRegistry   types.PermissionRegistry
	ActivitySink         types.ActivitySink
	ActivityRepository   types.ActivityRepository
	QueryEngine          *listquery.Engine
	FeatureGate          featuregate.FeatureGate
	Hooks                types.Hooks
	Clock                types.Clock
	IDGenerator          types.IDGenerator
	Logger               types.Logger
	ScopeResolver        types.ScopeResolver
	AuthorizationPolicy  types.AuthorizationPolicy
}

// PreferenceResolver resolves the effective list preference for queries.
type PreferenceResolver interface {
	Resolve(ctx context.Context, input preferences.ResolveInput) (types.ListPreference, error)
}

// New constructs a Service from the supplied configuration.
func New(cfg Config) *Service {
	norm := normalizeConfig(cfg)
	actRepo := norm.ActivityRepository
	if actRepo == nil {
		if sinkRepo, ok := norm.ActivitySink.(types.ActivityRepository); ok {
			actRepo = sinkRepo
		}
	}
	prefResolver := norm.PreferenceResolver
	if prefResolver == nil && norm.PreferenceRepository != nil {
		if resolver, err := preferences.NewResolver(preferences.ResolverConfig{
			Repository: norm.PreferenceRepository,
			Logger:     norm.Logger,
		}); err == nil {
			prefResolver = resolver
		} else {
			norm.Logger.Error("go-listviews: preference resolver initialization failed", err)
		}
	}

	var lookup types.AttributeLookup
	if norm.AttributeRegistry != nil {
		lookup = norm.AttributeRegistry
	}

	s := &Service{
		cfg:          norm,
		activityRepo: actRepo,
		prefResolver: prefResolver,
		catalog:      columns.NewResolver(lookup, norm.Logger),
		scopeGuard:   scope.NewGuard(norm.ScopeResolver, norm.AuthorizationPolicy, scope.WithLogger(norm.Logger)),
	}
	s.commands = s.buildCommands()
	s.queries = s.buildQueries()
	return s
}

func normalizeConfig(cfg Config) Config {
	if cfg.Clock == nil {
		cfg.Clock = types.SystemClock{}
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = types.UUIDGenerator{}
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	return cfg
}

// Commands returns the command facade.
func (s *Service) Commands() Commands {
	return s.commands
}

// Queries returns the query facade.
func (s *Service) Queries() Queries {
	return s.queries
}

// Columns returns the column catalog resolver shared by the queries.
func (s *Service) Columns() *columns.Resolver {
	return s.catalog
}

// Ready reports whether the service has the required dependencies wired in.
func (s *Service) Ready() bool {
	return s.HealthCheck(context.Background()) == nil
}

// HealthCheck surfaces missing dependencies so upstream transports (CLI,
// HTTP, jobs) can fail fast.
func (s *Service) HealthCheck(context.Context) error {
	if s == nil {
		return types.ErrServiceNotReady
	}
	if s.cfg.AttributeRegistry == nil {
		return types.ErrMissingAttributeRegistry
	}
	if s.cfg.PreferenceRepository == nil {
		return types.ErrMissingPreferenceRepository
	}
	if s.prefResolver == nil {
		return types.ErrMissingPreferenceResolver
	}
	if s.cfg.PermissionRegistry == nil {
		return types.ErrMissingPermissionRegistry
	}
	if s.cfg.QueryEngine == nil {
		return types.ErrMissingQueryEngine
	}
	if s.cfg.ActivitySink == nil {
		return types.ErrMissingActivitySink
	}
	if s.activityRepo == nil {
		return types.ErrMissingActivityRepository
	}
	return nil
}

// ScopeGuard exposes the guard instance used internally so transports can
// reuse the same resolver/policy combination.
func (s *Service) ScopeGuard() scope.Guard {
	if s == nil {
		return scope.NopGuard()
	}
	return scope.Ensure(s.scopeGuard)
}

// ActivitySink returns the configured sink so transports can emit activity
// records for auxiliary workflows.
func (s *Service) ActivitySink() types.ActivitySink {
	if s == nil {
		return nil
	}
	return s.cfg.ActivitySink
}

func (s *Service) buildCommands() Commands {
	prefCfg := command.PreferenceCommandConfig{
		Repository:  s.cfg.PreferenceRepository,
		Permissions: s.cfg.PermissionRegistry,
		Activity:    s.cfg.ActivitySink,
		Hooks:       s.cfg.Hooks,
		Clock:       s.cfg.Clock,
		Logger:      s.cfg.Logger,
		ScopeGuard:  s.scopeGuard,
		FeatureGate: s.cfg.FeatureGate,
	}
	attrCfg := command.AttributeCommandConfig{
		Registry:   s.cfg.AttributeRegistry,
		Activity:   s.cfg.ActivitySink,
		Hooks:      s.cfg.Hooks,
		Clock:      s.cfg.Clock,
		Logger:     s.cfg.Logger,
		ScopeGuard: s.scopeGuard,
	}
	return Commands{
		SavePreference:     command.NewSavePreferenceCommand(prefCfg),
		ResetPreference:    command.NewResetPreferenceCommand(prefCfg),
		DefineAttribute:    command.NewDefineAttributeCommand(attrCfg),
		SetAttributeValues: command.NewSetAttributeValuesCommand(attrCfg),
		LogActivity: command.NewActivityLogCommand(command.ActivityLogConfig{
			Sink:       s.cfg.ActivitySink,
			Hooks:      s.cfg.Hooks,
			Clock:      s.cfg.Clock,
			Logger:     s.cfg.Logger,
			ScopeGuard: s.scopeGuard,
		}),
	}
}

func (s *Service) buildQueries() Queries {
	return Queries{
		Preference:       query.NewResolvePreferenceQuery(s.prefResolver, s.scopeGuard),
		AvailableColumns: query.NewAvailableColumnsQuery(s.catalog, s.scopeGuard),
		ListRecords: query.NewListRecordsQuery(query.ListRecordsConfig{
			Engine:     s.cfg.QueryEngine,
			Resolver:   s.prefResolver,
			Columns:    s.catalog,
			ScopeGuard: s.scopeGuard,
			Logger:     s.cfg.Logger,
		}),
		ActivityFeed: query.NewActivityFeedQuery(s.activityRepo, s.scopeGuard),
	}
}
