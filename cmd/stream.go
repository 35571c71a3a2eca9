package cmd

import (
	"fmt"
	"strings"

	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/spf13/cobra"
)

type streamOptions struct {
	on    []string
	from  string
	to    string
	limit int
}

type descriptorFunc func(profile domain.Profile, creds domain.Credentials) (domain.ConnectionDescriptor, error)

func newStreamCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Consume a PowerTrack, Replay or Compliance stream as JSON lines",
	}

	cmd.AddCommand(
		newStreamTrackCmd(app),
		newStreamReplayCmd(app),
		newStreamComplianceCmd(app),
	)

	return cmd
}

func newStreamTrackCmd(app *app) *cobra.Command {
	var opts streamOptions

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Consume the realtime PowerTrack stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStream(cmd, app, opts, func(profile domain.Profile, creds domain.Credentials) (domain.ConnectionDescriptor, error) {
				return app.cfg.Endpoints.TrackDescriptor(profile, creds), nil
			})
		},
	}

	addStreamFlags(cmd, &opts, false)

	return cmd
}

func newStreamReplayCmd(app *app) *cobra.Command {
	var opts streamOptions

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a historical range of the PowerTrack stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStream(cmd, app, opts, func(profile domain.Profile, creds domain.Credentials) (domain.ConnectionDescriptor, error) {
				return app.cfg.Endpoints.ReplayDescriptor(profile, creds, domain.ReplayQuery{FromDate: opts.from, ToDate: opts.to})
			})
		},
	}

	addStreamFlags(cmd, &opts, true)

	return cmd
}

func newStreamComplianceCmd(app *app) *cobra.Command {
	var opts streamOptions

	cmd := &cobra.Command{
		Use:   "compliance",
		Short: "Fetch compliance events for a window of at most ten minutes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStream(cmd, app, opts, func(profile domain.Profile, creds domain.Credentials) (domain.ConnectionDescriptor, error) {
				return app.cfg.Endpoints.ComplianceDescriptor(profile, creds, domain.ComplianceQuery{FromDate: opts.from, ToDate: opts.to}, app.clock.Now())
			})
		},
	}

	addStreamFlags(cmd, &opts, true)

	return cmd
}

func addStreamFlags(cmd *cobra.Command, opts *streamOptions, withRange bool) {
	cmd.Flags().StringSliceVar(&opts.on, "on", []string{"data"}, "Channels to print (data, verb:post, event:..., all)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Stop after this many data events (0: unlimited)")
	if withRange {
		cmd.Flags().StringVar(&opts.from, "from", "", "Range start, YYYYMMDDHHMM (UTC)")
		cmd.Flags().StringVar(&opts.to, "to", "", "Range end, YYYYMMDDHHMM (UTC)")
	}
}

func runStream(cmd *cobra.Command, app *app, opts streamOptions, build descriptorFunc) error {
	channels, all, err := parseChannels(opts.on)
	if err != nil {
		return err
	}

	profile, creds, err := app.resolveProfile(cmd.Context())
	if err != nil {
		return err
	}

	descriptor, err := build(profile, creds)
	if err != nil {
		return err
	}

	c := newConsumer(app.newSession(descriptor), app.logger)
	write := func(ev domain.Event) {
		if err := writeEvent(cmd.OutOrStdout(), ev); err != nil {
			c.stop(fmt.Errorf("write %s event: %w", ev.Channel, err))
		}
	}
	if all {
		c.router.OnAny(write)
	}
	for _, ch := range channels {
		c.router.On(ch, write)
	}

	if opts.limit > 0 {
		seen := 0
		c.router.On(domain.DataChannel, func(domain.Event) {
			seen++
			if seen == opts.limit {
				c.stop(nil)
			}
		})
	}

	return c.run(cmd.Context())
}

// parseChannels reads --on values. "all" selects every emission.
func parseChannels(raw []string) ([]domain.Channel, bool, error) {
	channels := make([]domain.Channel, 0, len(raw))
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "all" {
			return nil, true, nil
		}
		ch, err := domain.ParseChannel(value)
		if err != nil {
			return nil, false, fmt.Errorf("--on %q: %w", value, err)
		}
		channels = append(channels, ch)
	}
	return channels, false, nil
}
