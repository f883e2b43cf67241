package main

import (
	"context"
	"database/sql"
	"fmt"

	gconfig "github.com/goliatone/go-config/config"
	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	listviews "github.com/thrivehealth/go-listviews"
	"github.com/thrivehealth/go-listviews/activity"
	"github.com/thrivehealth/go-listviews/attributes"
	"github.com/thrivehealth/go-listviews/cmd/listviews/config"
	"github.com/thrivehealth/go-listviews/command"
	"github.com/thrivehealth/go-listviews/listquery"
	"github.com/thrivehealth/go-listviews/migrations"
	"github.com/thrivehealth/go-listviews/permissions"
	"github.com/thrivehealth/go-listviews/pkg/authctx"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/preferences"
	"github.com/thrivehealth/go-listviews/subjects"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

// App holds the CLI runtime: configuration, logger, database and the wired
// list view service.
type App struct {
	config      *gconfig.Container[*config.BaseConfig]
	logger      *glog.BaseLogger
	sqlDB       *sql.DB
	bunDB       *bun.DB
	service     *listviews.Service
	permissions *permissions.Registry
	attributes  *attributes.Registry
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

// Actor returns the actor configured for this invocation.
func (a *App) Actor() types.ActorRef {
	id, _ := uuid.Parse(a.Config().App.ActorID)
	return types.ActorRef{ID: id, Type: a.Config().App.ActorRole}
}

// Scope returns the organization scope configured for this invocation.
func (a *App) Scope() types.ScopeFilter {
	id, _ := uuid.Parse(a.Config().App.OrgID)
	return types.ScopeFilter{OrgID: id}
}

// Context attaches the configured actor to ctx so the scope resolver can bind
// requests to the actor's organization.
func (a *App) Context(ctx context.Context) context.Context {
	cfg := a.Config().App
	return authctx.WithActorContext(ctx, &authctx.ActorContext{
		ActorID:        cfg.ActorID,
		Role:           cfg.ActorRole,
		OrganizationID: cfg.OrgID,
	})
}

func (a *App) Close() error {
	if a.bunDB != nil {
		return a.bunDB.Close()
	}
	if a.sqlDB != nil {
		return a.sqlDB.Close()
	}
	return nil
}

// WithPersistence opens the configured database and, when migrate is set,
// applies the registered dialect migrations.
func WithPersistence(ctx context.Context, app *App, migrate bool) error {
	cfg := app.Config().Persistence

	var (
		driverName string
		dialect    schema.Dialect
	)
	switch cfg.Dialect() {
	case "postgres":
		driverName = "pgx"
		dialect = pgdialect.New()
	default:
		driverName = sqliteshim.ShimName
		dialect = sqlitedialect.New()
	}

	db, err := sql.Open(driverName, cfg.GetServer())
	if err != nil {
		return err
	}
	app.sqlDB = db

	persistence.RegisterModel((*subjects.Patient)(nil))
	persistence.RegisterModel((*subjects.Encounter)(nil))
	persistence.RegisterModel((*attributes.Attribute)(nil))
	persistence.RegisterModel((*attributes.EnumOption)(nil))
	persistence.RegisterModel((*attributes.Value)(nil))
	persistence.RegisterModel((*preferences.Record)(nil))
	persistence.RegisterModel((*permissions.Role)(nil))
	persistence.RegisterModel((*permissions.RoleMember)(nil))
	persistence.RegisterModel((*permissions.Grant)(nil))
	persistence.RegisterModel((*activity.LogEntry)(nil))

	client, err := persistence.New(cfg, db, dialect)
	if err != nil {
		return err
	}
	client.SetLogger(app.GetLogger("persistence"))

	if migrate {
		for _, fsys := range migrations.Filesystems() {
			client.RegisterDialectMigrations(
				fsys,
				persistence.WithDialectSourceLabel("."),
				persistence.WithValidationTargets("postgres", "sqlite"),
			)
		}
		if err := client.ValidateDialects(ctx); err != nil {
			app.GetLogger("persistence").Warn("dialect validation failed", "error", err)
		}
		if err := client.Migrate(ctx); err != nil {
			return err
		}
		if report := client.Report(); report != nil && !report.IsZero() {
			app.GetLogger("persistence").Info("migrations applied", "report", report.String())
		}
	}

	app.bunDB = client.DB()
	return nil
}

// WithService wires the repositories, registries and query engine into the
// list view service.
func WithService(_ context.Context, app *App) error {
	if app.bunDB == nil {
		return fmt.Errorf("listviews: database not initialized")
	}
	cfg := app.Config()

	attrRegistry, err := attributes.NewRegistry(attributes.RegistryConfig{
		DB:     app.bunDB,
		Logger: &loggerAdapter{app.GetLogger("attributes")},
	}, attributes.WithCache(cfg.App.AttributeCache))
	if err != nil {
		return err
	}
	prefRepo, err := preferences.NewRepository(preferences.RepositoryConfig{DB: app.bunDB})
	if err != nil {
		return err
	}
	permRegistry, err := permissions.NewRegistry(permissions.RegistryConfig{
		DB:     app.bunDB,
		Logger: &loggerAdapter{app.GetLogger("permissions")},
	})
	if err != nil {
		return err
	}
	activityRepo, err := activity.NewRepository(activity.RepositoryConfig{
		DB:     app.bunDB,
		Masker: activity.DefaultMasker(),
	})
	if err != nil {
		return err
	}
	engine, err := listquery.NewEngine(listquery.Config{
		DB:         app.bunDB,
		Attributes: attrRegistry,
		Logger:     &loggerAdapter{app.GetLogger("listquery")},
		Masker:     activity.DefaultMasker(),
	})
	if err != nil {
		return err
	}

	app.attributes = attrRegistry
	app.permissions = permRegistry
	app.service = listviews.New(listviews.Config{
		AttributeRegistry:    attrRegistry,
		PreferenceRepository: prefRepo,
		PermissionRegistry:   permRegistry,
		ActivitySink:         activityRepo,
		ActivityRepository:   activityRepo,
		QueryEngine:          engine,
		FeatureGate:          staticGate{features: cfg.Features},
		Hooks: types.Hooks{
			AfterPreferenceChange: func(_ context.Context, event types.PreferenceEvent) {
				app.GetLogger("hooks").Info("list preference changed",
					"action", event.Action,
					"list_type", string(event.ListType),
					"level", string(event.Level),
				)
			},
		},
		Logger:              &loggerAdapter{app.GetLogger("listviews")},
		ScopeResolver:       authctx.ScopeResolver{},
		AuthorizationPolicy: types.RolePolicy{},
	})
	return app.service.HealthCheck(context.Background())
}

// staticGate serves feature flags from the CLI configuration.
type staticGate struct {
	features config.FeaturesConfig
}

func (g staticGate) Enabled(_ context.Context, key string, _ ...featuregate.ResolveOption) (bool, error) {
	switch key {
	case command.FeatureUserPreferences:
		return g.features.UserPreferences, nil
	default:
		return true, nil
	}
}

type loggerAdapter struct {
	l glog.Logger
}

func (a *loggerAdapter) Debug(msg string, args ...any) {
	a.l.Debug(msg, args...)
}

func (a *loggerAdapter) Info(msg string, args ...any) {
	a.l.Info(msg, args...)
}

func (a *loggerAdapter) Warn(msg string, args ...any) {
	a.l.Warn(msg, args...)
}

func (a *loggerAdapter) Error(msg string, err error, args ...any) {
	if err != nil {
		args = append([]any{"error", err}, args...)
	}
	a.l.Error(msg, args...)
}
