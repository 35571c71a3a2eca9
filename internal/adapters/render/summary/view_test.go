package summary

import (
	"strings"
	"testing"

	"github.com/bnema/powertrack-cli/internal/application"
	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRules(t *testing.T) {
	output, err := RenderRules("default", domain.RuleSet{
		{Value: "cats OR dogs", Tag: "pets"},
		{Value: "lang:en"},
	})

	require.NoError(t, err)
	assert.Contains(t, output, "Rules for default")
	assert.Contains(t, output, "rules: 2")
	assert.Contains(t, output, "cats OR dogs")
	assert.Contains(t, output, "#pets")
	assert.Contains(t, output, "lang:en")
}

func TestRenderRulesEmpty(t *testing.T) {
	output, err := RenderRules("default", nil)

	require.NoError(t, err)
	assert.Contains(t, output, "rules: 0")
	assert.Contains(t, output, "No rules on this stream.")
}

func TestRenderPlanDryRun(t *testing.T) {
	plan := domain.Plan{
		ToAdd:    domain.RuleSet{{Value: "new rule", Tag: "fresh"}},
		ToRemove: domain.RuleSet{{Value: "old rule"}},
		ToKeep:   domain.RuleSet{{Value: "a"}, {Value: "b"}},
	}

	output, err := RenderPlan(plan, nil)

	require.NoError(t, err)
	assert.Contains(t, output, "Rule plan (dry run)")
	assert.Contains(t, output, "+1")
	assert.Contains(t, output, "-1")
	assert.Contains(t, output, "=2")
	assert.Contains(t, output, "+ new rule")
	assert.Contains(t, output, "- old rule")
	assert.NotContains(t, output, "batches")
}

func TestRenderPlanWithReport(t *testing.T) {
	plan := domain.Plan{ToAdd: domain.RuleSet{{Value: "x"}}}

	output, err := RenderPlan(plan, &application.UpdateReport{
		Plan:  plan,
		Added: application.BatchReport{Batches: 1, Rules: 1},
	})

	require.NoError(t, err)
	assert.Contains(t, output, "Rules synced")
	assert.Contains(t, output, "added 1 rules in 1 batches, removed 0 rules in 0 batches")
}

func TestRenderPlanAlreadyInSync(t *testing.T) {
	output, err := RenderPlan(domain.Plan{ToKeep: domain.RuleSet{{Value: "x"}}}, nil)

	require.NoError(t, err)
	assert.Contains(t, output, "Live rules already match.")
}

func TestRenderPlanBarFillsWidth(t *testing.T) {
	s := newStyles()

	tests := []struct {
		name string
		plan domain.Plan
		want string
	}{
		{name: "empty", plan: domain.Plan{}, want: "[" + strings.Repeat(" ", 8) + "]"},
		{name: "all kept", plan: domain.Plan{ToKeep: domain.RuleSet{{Value: "a"}}}, want: "[" + strings.Repeat("=", 8) + "]"},
		{
			name: "half added quarter removed",
			plan: domain.Plan{
				ToAdd:    domain.RuleSet{{Value: "a"}, {Value: "b"}},
				ToRemove: domain.RuleSet{{Value: "c"}},
				ToKeep:   domain.RuleSet{{Value: "d"}},
			},
			want: "[++++--==]",
		},
		{
			name: "tiny share still visible",
			plan: domain.Plan{
				ToAdd:  domain.RuleSet{{Value: "a"}},
				ToKeep: make(domain.RuleSet, 99),
			},
			want: "[+=======]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderPlanBar(tt.plan, 8, s))
		})
	}
}

func TestRenderProfiles(t *testing.T) {
	output, err := RenderProfiles([]application.ProfileStatus{
		{
			Profile: domain.Profile{
				Name:        "default",
				AccountName: "acme",
				Platform:    "twitter",
				StreamName:  "prod",
				User:        "ops@acme.test",
				BatchSize:   1000,
			},
			HasPassword: true,
		},
		{
			Profile: domain.Profile{Name: "bare", AccountName: "acme", Platform: "twitter", StreamName: "dev"},
		},
	})

	require.NoError(t, err)
	assert.Contains(t, output, "profiles: 2")
	assert.Contains(t, output, "account: acme  platform: twitter  stream: prod")
	assert.Contains(t, output, "user: ops@acme.test  batch size: 1000")
	assert.Contains(t, output, "user: none")
	assert.Equal(t, 1, strings.Count(output, "[no password stored]"))
}

func TestRenderProfilesEmpty(t *testing.T) {
	output, err := RenderProfiles(nil)

	require.NoError(t, err)
	assert.Contains(t, output, "No profiles configured.")
}
