package summary

import (
	"fmt"
	"math"
	"strings"

	"github.com/bnema/powertrack-cli/internal/application"
	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const planBarWidth = 24

func RenderRules(profile domain.ProfileName, rules domain.RuleSet) (string, error) {
	return render(func(s styles) string { return rulesView(profile, rules, s) })
}

// RenderPlan shows the diff between desired and live rules. The report is
// nil for a dry run.
func RenderPlan(plan domain.Plan, report *application.UpdateReport) (string, error) {
	return render(func(s styles) string { return planView(plan, report, s) })
}

func RenderProfiles(statuses []application.ProfileStatus) (string, error) {
	return render(func(s styles) string { return profilesView(statuses, s) })
}

func rulesView(profile domain.ProfileName, rules domain.RuleSet, s styles) string {
	lines := []string{
		s.title.Render(fmt.Sprintf("Rules for %s", profile)),
		s.header.Render(fmt.Sprintf("rules: %d", len(rules))),
	}

	if len(rules) == 0 {
		lines = append(lines, s.empty.Render("No rules on this stream."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, rule := range rules {
		lines = append(lines, ruleLine("", rule, s.detail, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func planView(plan domain.Plan, report *application.UpdateReport, s styles) string {
	title := "Rule plan (dry run)"
	if report != nil {
		title = "Rules synced"
	}

	lines := []string{
		s.title.Render(title),
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			renderPlanBar(plan, planBarWidth, s),
			" ",
			s.add.Render(fmt.Sprintf("+%d", len(plan.ToAdd))),
			" ",
			s.remove.Render(fmt.Sprintf("-%d", len(plan.ToRemove))),
			" ",
			s.keep.Render(fmt.Sprintf("=%d", len(plan.ToKeep))),
		),
	}

	if plan.Empty() {
		lines = append(lines, s.empty.Render("Live rules already match."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, rule := range plan.ToAdd {
		lines = append(lines, ruleLine("+ ", rule, s.add, s))
	}
	for _, rule := range plan.ToRemove {
		lines = append(lines, ruleLine("- ", rule, s.remove, s))
	}

	if report != nil {
		lines = append(lines, s.section.Render(s.header.Render(fmt.Sprintf(
			"added %d rules in %d batches, removed %d rules in %d batches",
			report.Added.Rules, report.Added.Batches, report.Removed.Rules, report.Removed.Batches,
		))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func profilesView(statuses []application.ProfileStatus, s styles) string {
	lines := []string{
		s.title.Render("PowerTrack Profiles"),
		s.header.Render(fmt.Sprintf("profiles: %d", len(statuses))),
	}

	if len(statuses) == 0 {
		lines = append(lines, s.empty.Render("No profiles configured. Run `pt profile set`."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, status := range statuses {
		p := status.Profile
		parts := []string{
			s.profile.Render(string(p.Name)),
			s.detail.Render(fmt.Sprintf("account: %s  platform: %s  stream: %s", p.AccountName, p.Platform, p.StreamName)),
			s.detail.Render(fmt.Sprintf("user: %s  batch size: %d", valueOrNone(p.User), p.BatchSize)),
		}
		if !status.HasPassword {
			parts = append(parts, s.warning.Render("[no password stored]"))
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func ruleLine(prefix string, rule domain.Rule, value lipgloss.Style, s styles) string {
	line := value.Render(prefix + rule.Value)
	if rule.Tag != "" {
		line += " " + s.tag.Render("#"+rule.Tag)
	}
	return line
}

// renderPlanBar splits width between additions, removals and kept rules.
func renderPlanBar(plan domain.Plan, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	total := len(plan.ToAdd) + len(plan.ToRemove) + len(plan.ToKeep)
	if total == 0 {
		return lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.barBracket.Render("["),
			s.keep.Render(strings.Repeat(" ", width)),
			s.barBracket.Render("]"),
		)
	}

	added := segmentWidth(len(plan.ToAdd), total, width, width)
	removed := segmentWidth(len(plan.ToRemove), total, width, width-added)
	kept := width - added - removed

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.add.Render(strings.Repeat("+", added)),
		s.remove.Render(strings.Repeat("-", removed)),
		s.keep.Render(strings.Repeat("=", kept)),
		s.barBracket.Render("]"),
	)
}

// segmentWidth scales count/total to width, at least one cell for a
// non-zero count and never more than limit.
func segmentWidth(count, total, width, limit int) int {
	if count == 0 {
		return 0
	}
	w := int(math.Round(float64(width) * float64(count) / float64(total)))
	if w < 1 {
		w = 1
	}
	if w > limit {
		w = limit
	}
	return w
}

func valueOrNone(v string) string {
	if strings.TrimSpace(v) == "" {
		return "none"
	}
	return v
}
