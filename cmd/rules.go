package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/powertrack-cli/internal/adapters/render/summary"
	"github.com/bnema/powertrack-cli/internal/adapters/rulesfile"
	"github.com/bnema/powertrack-cli/internal/application"
	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/spf13/cobra"
)

var (
	errNoRules      = errors.New("no rules given; use --rule or --file")
	errEmptyDesired = errors.New("rules source holds no rules; pass --allow-empty to remove every live rule")
)

type ruleSource struct {
	rules []string
	file  string
}

func (s ruleSource) load() (domain.RuleSet, error) {
	var set domain.RuleSet
	for _, raw := range s.rules {
		rule, err := domain.ParseRule(raw)
		if err != nil {
			return nil, err
		}
		set = append(set, rule)
	}

	if s.file != "" {
		fromFile, err := rulesfile.Load(s.file)
		if err != nil {
			return nil, err
		}
		set = append(set, fromFile...)
	}

	return set, nil
}

func addRuleSourceFlags(cmd *cobra.Command, src *ruleSource) {
	cmd.Flags().StringArrayVar(&src.rules, "rule", nil, "Rule as value or value#tag (repeatable)")
	cmd.Flags().StringVar(&src.file, "file", "", "Rules file (.toml, .json or .txt)")
}

func newRulesCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List and change the rules of the profile's stream",
	}

	cmd.AddCommand(
		newRulesListCmd(app),
		newRulesChangeCmd(app, "add", "Add rules to the stream", (*application.Reconciler).Add),
		newRulesChangeCmd(app, "remove", "Remove rules from the stream", (*application.Reconciler).Remove),
		newRulesSyncCmd(app),
	)

	return cmd
}

func newRulesListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the rules live on the stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reconciler, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}

			rules, err := reconciler.List(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				if rules == nil {
					rules = domain.RuleSet{}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]domain.RuleSet{"rules": rules})
			}

			rendered, err := summary.RenderRules(app.profileName, rules)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

type batchCall func(*application.Reconciler, context.Context, domain.RuleSet, int) (application.BatchReport, error)

func newRulesChangeCmd(app *app, use, short string, call batchCall) *cobra.Command {
	var (
		src       ruleSource
		batchSize int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rules, err := src.load()
			if err != nil {
				return err
			}
			if len(rules) == 0 {
				return errNoRules
			}

			reconciler, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}

			report, err := call(reconciler, cmd.Context(), rules, batchSize)
			if err != nil {
				return fmt.Errorf("%s rules after %d successful batches: %w", use, report.Batches, err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules in %d batches\n", use, report.Rules, report.Batches)
			return err
		},
	}

	addRuleSourceFlags(cmd, &src)
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Rules per request (default: profile batch size)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newRulesSyncCmd(app *app) *cobra.Command {
	var (
		src        ruleSource
		batchSize  int
		dryRun     bool
		asJSON     bool
		allowEmpty bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Make the live rules match the desired rules: add missing, then remove stale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if src.file == "" && len(src.rules) == 0 && !allowEmpty {
				return errNoRules
			}
			desired, err := src.load()
			if err != nil {
				return err
			}
			if len(desired) == 0 && !dryRun && !allowEmpty {
				return errEmptyDesired
			}

			profile, creds, err := app.resolveProfile(cmd.Context())
			if err != nil {
				return err
			}

			if dryRun {
				plan, err := app.newReconciler(profile, creds, nil).Plan(cmd.Context(), desired)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), plan)
				}
				return writePlan(cmd, plan, nil)
			}

			var report application.UpdateReport
			if asJSON {
				report, err = app.newReconciler(profile, creds, nil).Update(cmd.Context(), desired, batchSize)
			} else {
				report, err = syncWithProgress(cmd.Context(), cmd.ErrOrStderr(), func(progress func(application.BatchProgress)) *application.Reconciler {
					return app.newReconciler(profile, creds, progress)
				}, desired, batchSize)
			}
			if err != nil {
				return fmt.Errorf("sync rules: %w", err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return writePlan(cmd, report.Plan, &report)
		},
	}

	addRuleSourceFlags(cmd, &src)
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Rules per request (default: profile batch size)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the plan without changing anything")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	cmd.Flags().BoolVar(&allowEmpty, "allow-empty", false, "Allow an empty rule set, removing every live rule")

	return cmd
}

func writePlan(cmd *cobra.Command, plan domain.Plan, report *application.UpdateReport) error {
	rendered, err := summary.RenderPlan(plan, report)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func (a *app) reconciler(ctx context.Context) (*application.Reconciler, error) {
	profile, creds, err := a.resolveProfile(ctx)
	if err != nil {
		return nil, err
	}
	return a.newReconciler(profile, creds, nil), nil
}
