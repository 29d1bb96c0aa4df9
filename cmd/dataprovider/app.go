package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/suparena/dataprovider"
	"github.com/suparena/dataprovider/adminqueries"
	"github.com/suparena/dataprovider/config"
	"github.com/suparena/dataprovider/datastore"
	"github.com/suparena/dataprovider/datastore/ddb"
	"github.com/suparena/dataprovider/graphql"
	"github.com/suparena/dataprovider/logging"
	"github.com/suparena/dataprovider/metrics"
	"github.com/suparena/dataprovider/pagination"
	"github.com/suparena/dataprovider/registry"
	"go.uber.org/zap"
)

// app is a fully wired provider stack.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	ops     *registry.Operations
	router  *dataprovider.Router
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath, envFiles...)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	m := metrics.New(nil)

	ops, executor, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	cursors := pagination.NewStore()
	m.TrackCursors("provider", cursors.Len)

	provider := dataprovider.New(ops, executor,
		dataprovider.WithLogger(logger.Named("provider")),
		dataprovider.WithMetrics(m),
		dataprovider.WithCursorStore(cursors),
	)
	router := dataprovider.NewRouter(provider)

	if cfg.AdminQueries.Endpoint != "" {
		callerOpts := []adminqueries.CallerOption{adminqueries.WithCallerLogger(logger.Named("admin"))}
		if token := cfg.AdminQueries.Token; token != "" {
			callerOpts = append(callerOpts, adminqueries.WithToken(func(context.Context) (string, error) {
				return token, nil
			}))
		}
		client := adminqueries.New(adminqueries.NewHTTPCaller(cfg.AdminQueries.Endpoint, callerOpts...),
			adminqueries.WithLogger(logger.Named("admin")),
			adminqueries.WithCursorStore(cursors),
			adminqueries.WithMetrics(m),
		)
		if err := router.RegisterAdmin(dataprovider.NewAdminHandler(client)); err != nil {
			return nil, err
		}
	}

	logger.Info("data provider ready",
		zap.String("backend", cfg.Backend),
		zap.Int("queries", len(ops.Queries())),
		zap.Int("mutations", len(ops.Mutations())),
		zap.Bool("adminQueries", cfg.AdminQueries.Endpoint != ""))

	return &app{cfg: cfg, logger: logger, metrics: m, ops: ops, router: router}, nil
}

func newBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*registry.Operations, datastore.Executor, error) {
	switch cfg.Backend {
	case config.BackendDynamoDB:
		client, err := ddb.NewClient(ctx, cfg.DynamoDB.Config)
		if err != nil {
			return nil, nil, err
		}
		executor, err := ddb.New(client, cfg.DynamoDB.Tables, ddb.WithLogger(logger.Named("dynamodb")))
		if err != nil {
			return nil, nil, err
		}
		ops, err := executor.Operations()
		if err != nil {
			return nil, nil, err
		}
		return ops, executor, nil

	case config.BackendGraphQL:
		ops, err := registry.FromDocuments(cfg.GraphQL.Queries, cfg.GraphQL.Mutations)
		if err != nil {
			return nil, nil, fmt.Errorf("graphql operations: %w", err)
		}
		opts := []graphql.Option{
			graphql.WithHTTPClient(&http.Client{Timeout: cfg.GraphQL.Timeout}),
			graphql.WithLogger(logger.Named("graphql")),
		}
		if cfg.GraphQL.APIKey != "" {
			opts = append(opts, graphql.WithAPIKey(cfg.GraphQL.APIKey))
		}
		if cfg.GraphQL.Token != "" {
			opts = append(opts, graphql.WithStaticToken(cfg.GraphQL.Token))
		}
		return ops, graphql.New(cfg.GraphQL.Endpoint, opts...), nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
