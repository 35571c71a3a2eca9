package cmd

import (
	"fmt"

	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/spf13/cobra"
)

const defaultMaxPages = 10

type searchOptions struct {
	query      domain.SearchQuery
	allPages   bool
	maxPages   int
	pageEvents bool
}

func newSearchCmd(app *app) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a search query and print matching activities as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd, app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.query.Query, "query", "", "Search rule, operators included")
	cmd.Flags().StringVar(&opts.query.FromDate, "from", "", "Window start, YYYYMMDDHHMM (UTC)")
	cmd.Flags().StringVar(&opts.query.ToDate, "to", "", "Window end, YYYYMMDDHHMM (UTC)")
	cmd.Flags().IntVar(&opts.query.MaxResults, "max-results", 0, "Results per page, 10 to 500")
	cmd.Flags().StringVar(&opts.query.Next, "next", "", "Resume from this page cursor")
	cmd.Flags().BoolVar(&opts.allPages, "all-pages", false, "Follow next cursors")
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", defaultMaxPages, "Page limit with --all-pages")
	cmd.Flags().BoolVar(&opts.pageEvents, "page-events", false, "Also print page:next and page:is_last records")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func runSearch(cmd *cobra.Command, app *app, opts searchOptions) error {
	profile, creds, err := app.resolveProfile(cmd.Context())
	if err != nil {
		return err
	}

	query := opts.query
	for page := 1; ; page++ {
		descriptor, err := app.cfg.Endpoints.SearchDescriptor(profile, creds, query, app.clock.Now())
		if err != nil {
			return err
		}

		var cursor *string
		c := newConsumer(app.newSession(descriptor), app.logger)
		c.router.On(domain.DataChannel, func(ev domain.Event) {
			if err := writeResults(cmd, ev.Activity); err != nil {
				c.stop(err)
			}
		})
		c.router.On(domain.PageNextChannel, func(ev domain.Event) {
			cursor = ev.Cursor
		})
		if opts.pageEvents {
			for _, ch := range []domain.Channel{domain.PageNextChannel, domain.PageIsLastChannel} {
				c.router.On(ch, func(ev domain.Event) {
					if err := writeEvent(cmd.OutOrStdout(), ev); err != nil {
						c.stop(err)
					}
				})
			}
		}

		if err := c.run(cmd.Context()); err != nil {
			return fmt.Errorf("search page %d: %w", page, err)
		}

		if !opts.allPages || cursor == nil || page >= opts.maxPages {
			return nil
		}
		app.logger.Debug("following search cursor", "page", page+1, "next", *cursor)

		query, err = query.WithNext(*cursor)
		if err != nil {
			return err
		}
	}
}

// writeResults prints each entry of a page's results array.
func writeResults(cmd *cobra.Command, page domain.Activity) error {
	value, ok := page.Lookup("results")
	if !ok {
		return nil
	}
	results, ok := value.([]any)
	if !ok {
		return nil
	}

	for _, result := range results {
		data, err := activityCodec.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode search result: %w", err)
		}
		if _, err := cmd.OutOrStdout().Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}
