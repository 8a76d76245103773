package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-admin-console/internal/apiclient"
	"github.com/noah-isme/edu-admin-console/internal/dispatch"
	"github.com/noah-isme/edu-admin-console/internal/service"
	"github.com/noah-isme/edu-admin-console/internal/session"
	"github.com/noah-isme/edu-admin-console/pkg/listview"
)

type viewOptions struct {
	token    string
	filters  map[string]string
	page     int
	pageSize int
}

func viewCmd() *cobra.Command {
	opts := viewOptions{}
	cmd := &cobra.Command{
		Use:       "view <page>",
		Short:     "Print one filtered page as JSON",
		Long:      `Fetches a list page from the platform API with the given token, applies the filters and prints the page, its pagination and its aggregations.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{service.PagePayments, service.PageUsers, service.PageSessions, service.PageMarks, service.PageChat, service.PageStates, service.PageBatches},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logr, err := bootstrap()
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			if opts.token == "" {
				opts.token = os.Getenv("CONSOLE_TOKEN")
			}
			api := apiclient.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, apiclient.WithLogger(logr))
			views := service.NewViewService(api, dispatch.NewDispatcher(dispatch.NewMemoryLocker(), logr), nil, nil, nil, viewConfig(cfg), logr)
			defer views.Registry().Close()

			return runView(cmd.Context(), cmd.OutOrStdout(), views, args[0], opts, logr)
		},
	}
	cmd.Flags().StringVar(&opts.token, "token", "", "platform access token (default $CONSOLE_TOKEN)")
	cmd.Flags().StringToStringVarP(&opts.filters, "filter", "f", nil, "filter criteria, e.g. -f status=pending -f month=3")
	cmd.Flags().IntVar(&opts.page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "page size (default from config)")
	return cmd
}

func runView(ctx context.Context, out io.Writer, views *service.ViewService, page string, opts viewOptions, logr *zap.Logger) error {
	if opts.token == "" {
		return fmt.Errorf("a token is required")
	}
	claims, err := session.DecodeDisplayClaims(opts.token)
	if err != nil {
		return err
	}
	keys, _, ok := views.FilterKeys(page)
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	known := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		known[key] = struct{}{}
	}
	criteria := listview.Criteria{}
	for key, value := range opts.filters {
		if _, ok := known[key]; !ok {
			return fmt.Errorf("page %s has no filter %q", page, key)
		}
		if (key == "start_date" || key == "end_date") && !listview.ValidBound(value) {
			return fmt.Errorf("invalid %s %q", key, value)
		}
		criteria[key] = value
	}

	// The platform enforces access with the token itself; the decoded role
	// only selects which pages are worth asking for.
	actor := service.Actor{
		UserID:  claims.UserID,
		Role:    claims.Role,
		Session: session.Context{Token: opts.token},
	}
	query := service.ViewQuery{Criteria: criteria, Page: opts.page, PageSize: opts.pageSize}
	logr.Debug("rendering page", zap.String("page", page), zap.Any("criteria", criteria))

	switch page {
	case service.PagePayments:
		return printPage(ctx, out, actor, query, views.Payments)
	case service.PageUsers:
		return printPage(ctx, out, actor, query, views.Users)
	case service.PageSessions:
		return printPage(ctx, out, actor, query, views.Sessions)
	case service.PageMarks:
		return printPage(ctx, out, actor, query, views.Marks)
	case service.PageChat:
		return printPage(ctx, out, actor, query, views.Chat)
	case service.PageStates:
		return printPage(ctx, out, actor, query, views.States)
	default:
		return printPage(ctx, out, actor, query, views.Batches)
	}
}

func printPage[T any](ctx context.Context, out io.Writer, actor service.Actor, q service.ViewQuery, load func(context.Context, service.Actor, service.ViewQuery) (*service.PageResult[T], error)) error {
	result, err := load(ctx, actor, q)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*service.PageResult[T]
		Pagination interface{} `json:"pagination"`
	}{PageResult: result, Pagination: result.Pagination})
}
