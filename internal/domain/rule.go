package domain

import (
	"fmt"
	"strings"
)

// Rule is one server-side filter predicate. Two rules are the same rule when
// their values match; the tag is informational.
type Rule struct {
	Value string `json:"value" toml:"value"`
	Tag   string `json:"tag,omitempty" toml:"tag,omitempty"`
}

func (r Rule) Validate() error {
	if strings.TrimSpace(r.Value) == "" {
		return configError("rule.value", "is required")
	}
	return nil
}

// ParseRule reads the CLI form "value" or "value#tag". The tag is split off at
// the last '#' only when it directly follows a non-space character and holds
// no spaces, so hashtag rules such as "#golang #gopher" keep their value.
func ParseRule(raw string) (Rule, error) {
	value, tag := strings.TrimSpace(raw), ""
	if i := strings.LastIndex(value, "#"); i > 0 && value[i-1] != ' ' && value[i-1] != '\t' {
		candidate := value[i+1:]
		if candidate != "" && !strings.ContainsAny(candidate, " \t") {
			value, tag = value[:i], candidate
		}
	}
	rule := Rule{Value: strings.TrimSpace(value), Tag: tag}
	if err := rule.Validate(); err != nil {
		return Rule{}, fmt.Errorf("parse rule %q: %w", raw, err)
	}
	return rule, nil
}

// RuleSet may contain several rules with the same value.
type RuleSet []Rule

func (s RuleSet) Values() []string {
	values := make([]string, 0, len(s))
	for _, rule := range s {
		values = append(values, rule.Value)
	}
	return values
}

// Unique drops rules whose value already appeared earlier in the set.
func (s RuleSet) Unique() RuleSet {
	result := make(RuleSet, 0, len(s))
	seen := make(map[string]struct{}, len(s))
	for _, rule := range s {
		if _, ok := seen[rule.Value]; ok {
			continue
		}
		seen[rule.Value] = struct{}{}
		result = append(result, rule)
	}
	return result
}

func (s RuleSet) index() map[string]struct{} {
	index := make(map[string]struct{}, len(s))
	for _, rule := range s {
		index[rule.Value] = struct{}{}
	}
	return index
}

// Plan is the delta between a desired and a live rule set.
type Plan struct {
	ToAdd    RuleSet `json:"to_add"`
	ToRemove RuleSet `json:"to_remove"`
	ToKeep   RuleSet `json:"to_keep"`
}

func (p Plan) Empty() bool {
	return len(p.ToAdd) == 0 && len(p.ToRemove) == 0
}

// ComputePlan compares rule sets by value. ToAdd and ToKeep partition the
// desired set, ToRemove holds live rules nobody asked for. Every output set is
// free of duplicate values.
func ComputePlan(desired RuleSet, live RuleSet) Plan {
	liveIndex := live.index()
	desiredIndex := desired.index()

	plan := Plan{
		ToAdd:    RuleSet{},
		ToRemove: RuleSet{},
		ToKeep:   RuleSet{},
	}

	for _, rule := range desired.Unique() {
		if _, ok := liveIndex[rule.Value]; ok {
			plan.ToKeep = append(plan.ToKeep, rule)
			continue
		}
		plan.ToAdd = append(plan.ToAdd, rule)
	}

	for _, rule := range live.Unique() {
		if _, ok := desiredIndex[rule.Value]; !ok {
			plan.ToRemove = append(plan.ToRemove, rule)
		}
	}

	return plan
}
