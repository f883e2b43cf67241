package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/thrivehealth/go-listviews/cmd/listviews/config"
	"github.com/thrivehealth/go-listviews/command"
	"github.com/thrivehealth/go-listviews/migrations"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/query"
)

type globalFlags struct {
	driver     string
	dsn        string
	org        string
	actor      string
	role       string
	user       string
	verbose    bool
	showConfig bool
}

func main() {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "listviews",
		Short:         "Configurable list views over patients and encounters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.driver, "driver", "", "Database driver (sqlite or postgres)")
	pf.StringVar(&flags.dsn, "dsn", "", "Database connection string")
	pf.StringVar(&flags.org, "org", "", "Organization id")
	pf.StringVar(&flags.actor, "actor", "", "Acting user id")
	pf.StringVar(&flags.role, "role", "", "Acting user role (owner, admin, staff, patient)")
	pf.StringVar(&flags.user, "user", "", "Target user id for personal preferences")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Verbose logging")
	pf.BoolVar(&flags.showConfig, "show-config", false, "Print the resolved configuration")

	rootCmd.AddCommand(migrateCmd(flags))
	rootCmd.AddCommand(seedCmd(flags))
	rootCmd.AddCommand(columnsCmd(flags))
	rootCmd.AddCommand(preferenceCmd(flags))
	rootCmd.AddCommand(listCmd(flags))
	rootCmd.AddCommand(activityCmd(flags))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if code := types.TextCode(err); code != "" {
			fmt.Fprintln(os.Stderr, "code:", code)
		}
		os.Exit(1)
	}
}

// bootstrap loads configuration, opens the database and wires the service.
func bootstrap(ctx context.Context, flags *globalFlags, migrate bool) (*App, error) {
	lgr := newLogger(flags.verbose)

	cfg := gconfig.New(&config.BaseConfig{
		App: config.AppConfig{
			Name:      "listviews",
			OrgID:     "11111111-1111-1111-1111-111111111111",
			ActorID:   "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa",
			ActorRole: types.OrgRoleOwner,
		},
		Persistence: config.PersistenceConfig{
			Driver:         "sqlite",
			Server:         "file:listviews.db?_journal_mode=WAL&cache=shared&_fk=1",
			OtelIdentifier: "go-listviews",
		},
		Features: config.FeaturesConfig{
			UserPreferences: true,
		},
	}).WithLogger(lgr.GetLogger("config"))
	if err := cfg.Load(ctx); err != nil {
		return nil, err
	}
	flags.apply(cfg.Raw())
	if err := cfg.Raw().Validate(); err != nil {
		return nil, err
	}
	if flags.showConfig {
		fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
	}

	app := &App{config: cfg, logger: lgr}
	if err := WithPersistence(ctx, app, migrate); err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := WithService(ctx, app); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func newLogger(verbose bool) *glog.BaseLogger {
	if verbose {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("listviews"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("listviews"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

func (f *globalFlags) apply(cfg *config.BaseConfig) {
	if f.driver != "" {
		cfg.Persistence.Driver = f.driver
	}
	if f.dsn != "" {
		cfg.Persistence.Server = f.dsn
	}
	if f.org != "" {
		cfg.App.OrgID = f.org
	}
	if f.actor != "" {
		cfg.App.ActorID = f.actor
	}
	if f.role != "" {
		cfg.App.ActorRole = f.role
	}
	if f.verbose {
		cfg.App.Verbose = true
	}
}

func (f *globalFlags) userID() (uuid.UUID, error) {
	if f.user == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(f.user)
}

func migrateCmd(flags *globalFlags) *cobra.Command {
	var checkSubjects bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the list view migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := bootstrap(ctx, flags, true)
			if err != nil {
				return err
			}
			defer app.Close()
			if checkSubjects {
				if err := migrations.ValidateSubjectSchema(ctx, app.sqlDB, app.Config().Persistence.Dialect()); err != nil {
					return err
				}
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkSubjects, "check-subjects", false, "Validate the patients and encounters tables after migrating")
	return cmd
}

func seedCmd(flags *globalFlags) *cobra.Command {
	var patients int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed demo patients, encounters and custom attributes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := bootstrap(ctx, flags, true)
			if err != nil {
				return err
			}
			defer app.Close()
			ctx = app.Context(ctx)
			summary, err := seedDemo(ctx, app, patients)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	cmd.Flags().IntVar(&patients, "patients", 12, "Number of demo patients")
	return cmd
}

func columnsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "columns <list_type>",
		Short: "List the fixed and custom columns of a list type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := bootstrap(ctx, flags, false)
			if err != nil {
				return err
			}
			defer app.Close()
			ctx = app.Context(ctx)
			cols, err := app.service.Queries().AvailableColumns.Query(ctx, query.AvailableColumnsInput{
				Scope:    app.Scope(),
				ListType: types.ListType(args[0]),
				Actor:    app.Actor(),
			})
			if err != nil {
				return err
			}
			return printJSON(cols)
		},
	}
}

func preferenceCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preference",
		Short: "Resolve, save or reset list preferences",
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve <list_type>",
		Short: "Show the effective preference for a list type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, err := flags.userID()
			if err != nil {
				return err
			}
			app, err := bootstrap(ctx, flags, false)
			if err != nil {
				return err
			}
			defer app.Close()
			ctx = app.Context(ctx)
			pref, err := app.service.Queries().Preference.Query(ctx, query.ResolvePreferenceInput{
				Scope:    app.Scope(),
				UserID:   userID,
				ListType: types.ListType(args[0]),
				Actor:    app.Actor(),
			})
			if err != nil {
				return err
			}
			return printJSON(pref)
		},
	}

	var (
		columns string
		sort    string
		filters string
		perPage int
	)
	saveCmd := &cobra.Command{
		Use:   "save <list_type>",
		Short: "Save a personal (--user) or organization preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, err := flags.userID()
			if err != nil {
				return err
			}
			savedFilters, err := parseFilters(filters)
			if err != nil {
				return err
			}
			app, err := bootstrap(ctx, flags, false)
			if err != nil {
				return err
			}
			defer app.Close()
			ctx = app.Context(ctx)
			result := &types.ListPreference{}
			if err := app.service.Commands().SavePreference.Execute(ctx, command.SavePreferenceInput{
				Scope:          app.Scope(),
				UserID:         userID,
				ListType:       types.ListType(args[0]),
				VisibleColumns: splitList(columns),
				DefaultSort:    sort,
				SavedFilters:   savedFilters,
				ItemsPerPage:   perPage,
				Actor:          app.Actor(),
				Result:         result,
			}); err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	saveCmd.Flags().StringVar(&columns, "columns", "", "Comma separated visible columns")
	saveCmd.Flags().StringVar(&sort, "sort", "", "Default sort, prefix with - for descending")
	saveCmd.Flags().StringVar(&filters, "filters", "", "Saved filters as a JSON document")
	saveCmd.Flags().IntVar(&perPage, "per-page", 0, "Items per page")

	resetCmd := &cobra.Command{
		Use:   "reset <list_type>",
		Short: "Delete a personal (--user) or organization preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, err := flags.userID()
			if err != nil {
				return err
			}
			app, err := bootstrap(ctx, flags, false)
			if err != nil {
				return err
			}
			defer app.Close()
			ctx = app.Context(ctx)
			if err := app.service.Commands().ResetPreference.Execute(ctx, command.ResetPreferenceInput{
				Scope:    app.Scope(),
				UserID:   userID,
				ListType: types.ListType(args[0]),
				Actor:    app.Actor(),
			}); err != nil {
				return err
			}
			fmt.Println("preference reset")
			return nil
		},
	}

	cmd.AddCommand(resolveCmd, saveCmd, resetCmd)
	return cmd
}

func listCmd(flags *globalFlags) *cobra.Command {
	var (
		columns string
		sort    string
		filters string
		page    int
		perPage int
	)
	cmd := &cobra.Command{
		Use:   "list <list_type>",
		Short: "Fetch one page of a list view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, err := flags.userID()
			if err != nil {
				return err
			}
			doc, err := parseFilters(filters)
			if err != nil {
				return err
			}
			app, err := bootstrap(ctx, flags, false)
			if err != nil {
				return err
			}
			defer app.Close()
			ctx = app.Context(ctx)
			result, err := app.service.Queries().ListRecords.Query(ctx, query.ListRecordsInput{
				Scope:    app.Scope(),
				UserID:   userID,
				ListType: types.ListType(args[0]),
				Columns:  splitList(columns),
				Sort:     sort,
				Filters:  doc,
				Page:     page,
				PerPage:  perPage,
				Actor:    app.Actor(),
			})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&columns, "columns", "", "Comma separated visible columns, overrides the preference")
	cmd.Flags().StringVar(&sort, "sort", "", "Sort expression, overrides the preference")
	cmd.Flags().StringVar(&filters, "filters", "", "Filter document as JSON, overrides the saved filters")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "Items per page, overrides the preference")
	return cmd
}

func activityCmd(flags *globalFlags) *cobra.Command {
	var (
		limit int
		verb  string
	)
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the list view activity feed of the organization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := bootstrap(ctx, flags, false)
			if err != nil {
				return err
			}
			defer app.Close()
			ctx = app.Context(ctx)
			filter := types.ActivityFilter{Limit: limit}
			if verb != "" {
				filter.Verbs = []string{verb}
			}
			feed, err := app.service.Queries().ActivityFeed.Query(ctx, query.ActivityFeedInput{
				Actor:  app.Actor(),
				Scope:  app.Scope(),
				Filter: filter,
			})
			if err != nil {
				return err
			}
			return printJSON(feed)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records")
	cmd.Flags().StringVar(&verb, "verb", "", "Only show records with this verb")
	return cmd
}

// splitList returns nil for an empty flag so the preference value applies.
func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseFilters(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	doc := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("invalid --filters document: %w", err)
	}
	return doc, nil
}

func printJSON(v any) error {
	fmt.Println(print.MaybeHighlightJSON(v))
	return nil
}
