// Package rulesfile reads desired rule sets from disk. The format follows
// the file extension: .toml holds [[rules]] tables, .json holds
// {"rules":[...]}, and .txt holds one "value#tag" rule per line.
package rulesfile

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/powertrack-cli/internal/adapters/jsoncodec"
	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/pelletier/go-toml/v2"
)

type document struct {
	Rules domain.RuleSet `json:"rules" toml:"rules"`
}

func Load(path string) (domain.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	rules, err := Parse(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// Parse decodes data in the format named by ext (".toml", ".json" or ".txt").
func Parse(ext string, data []byte) (domain.RuleSet, error) {
	var (
		rules domain.RuleSet
		err   error
	)
	switch strings.ToLower(ext) {
	case ".toml":
		var doc document
		err = toml.Unmarshal(data, &doc)
		rules = doc.Rules
	case ".json":
		var doc document
		err = jsoncodec.Unmarshal(data, &doc)
		rules = doc.Rules
	case ".txt", "":
		rules, err = parseLines(data)
	default:
		return nil, fmt.Errorf("unsupported rules file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	for i, rule := range rules {
		rule.Value = strings.TrimSpace(rule.Value)
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rules[i] = rule
	}
	return rules, nil
}

func parseLines(data []byte) (domain.RuleSet, error) {
	var rules domain.RuleSet
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "//") {
			continue
		}
		rule, err := domain.ParseRule(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rules = append(rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}
