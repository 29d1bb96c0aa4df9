package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/suparena/dataprovider"
	"github.com/suparena/dataprovider/filter"
	"github.com/suparena/dataprovider/models"
	"github.com/suparena/dataprovider/server"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin UI HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.logger.Sync() //nolint:errcheck

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			srv := server.New(a.router,
				server.WithLogger(a.logger.Named("http")),
				server.WithMetrics(a.metrics),
				server.WithCORSOrigin(a.cfg.Server.CORSOrigin),
			)
			return srv.Run(ctx, addr, a.cfg.Server.ShutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		page, perPage    int
		filterJSON       string
		sortField, order string
		target, targetID string
	)
	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "Fetch one page of a resource",
		Long: "Fetch one page of a resource. Cursors only exist for pages that were " +
			"fetched, so pages 1..page are walked in order and the last one is printed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.logger.Sync() //nolint:errcheck

			f := filter.Filter{}
			if filterJSON != "" {
				if err := json.Unmarshal([]byte(filterJSON), &f); err != nil {
					return fmt.Errorf("parse --filter: %w", err)
				}
			}
			sort := models.Sort{Field: sortField, Order: strings.ToUpper(order)}

			res, err := walkPages(cmd.Context(), page, perPage, func(ctx context.Context, p models.Pagination) (*models.ListResult, error) {
				if target != "" {
					return a.router.GetManyReference(ctx, args[0], &models.GetManyReferenceParams{
						Target: target, ID: models.ID(targetID), Pagination: p, Sort: sort, Filter: f,
					})
				}
				return a.router.GetList(ctx, args[0], &models.ListParams{Pagination: p, Sort: sort, Filter: f})
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&perPage, "per-page", 10, "Records per page")
	cmd.Flags().StringVar(&filterJSON, "filter", "", `Filter as JSON, e.g. {"postsByBlog":{"blogID":"b1"}}`)
	cmd.Flags().StringVar(&sortField, "sort", "", "Sort field (honored when it names the index query)")
	cmd.Flags().StringVar(&order, "order", "ASC", "Sort order, ASC or DESC")
	cmd.Flags().StringVar(&target, "target", "", "Reference target, e.g. postsByBlog.blogID")
	cmd.Flags().StringVar(&targetID, "id", "", "Referenced id (with --target)")
	return cmd
}

// walkPages fetches pages 1..page and returns the last. It stops early on an
// empty page.
func walkPages(ctx context.Context, page, perPage int, fetch func(context.Context, models.Pagination) (*models.ListResult, error)) (*models.ListResult, error) {
	if err := (models.Pagination{Page: page, PerPage: perPage}).Validate(); err != nil {
		return nil, err
	}
	var res *models.ListResult
	for p := 1; p <= page; p++ {
		var err error
		res, err = fetch(ctx, models.Pagination{Page: p, PerPage: perPage})
		if err != nil {
			return nil, err
		}
		if len(res.Data) == 0 {
			break
		}
	}
	return res, nil
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource> <id>...",
		Short: "Fetch records by id",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.logger.Sync() //nolint:errcheck

			resource := args[0]
			if len(args) == 2 {
				res, err := a.router.GetOne(cmd.Context(), resource, &models.GetOneParams{ID: models.ID(args[1])})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}

			ids := make([]models.ID, 0, len(args)-1)
			for _, id := range args[1:] {
				ids = append(ids, models.ID(id))
			}
			res, err := a.router.GetMany(cmd.Context(), resource, &models.GetManyParams{IDs: ids})
			if err != nil {
				return err
			}
			for _, f := range res.Failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", f.ID, f.Err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func operationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List the registered queries and mutations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string][]string{
				"queries":   a.ops.Queries(),
				"mutations": a.ops.Mutations(),
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := dataprovider.GetVersionInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dataprovider version %s\n", info.Version)
			fmt.Fprintf(out, "Git commit: %s\n", info.GitCommit)
			fmt.Fprintf(out, "Build date: %s\n", info.BuildDate)
			fmt.Fprintf(out, "Go version: %s\n", info.GoVersion)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
