package rulesfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFormats(t *testing.T) {
	t.Parallel()

	want := domain.RuleSet{{Value: "cats OR dogs", Tag: "pets"}, {Value: "lang:en"}}

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "rules.toml",
			content: `
[[rules]]
value = "cats OR dogs"
tag = "pets"

[[rules]]
value = " lang:en "
`,
		},
		{
			name:    "json",
			file:    "rules.json",
			content: `{"rules":[{"value":"cats OR dogs","tag":"pets"},{"value":"lang:en"}]}`,
		},
		{
			name:    "text",
			file:    "rules.txt",
			content: "// desired rules\ncats OR dogs#pets\n\n  lang:en\n",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rules, err := Load(writeRules(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, want, rules)
		})
	}
}

func TestLoadEmptyDocument(t *testing.T) {
	t.Parallel()

	rules, err := Load(writeRules(t, "rules.json", `{"rules":[]}`))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestLoadRejectsBlankValue(t *testing.T) {
	t.Parallel()

	_, err := Load(writeRules(t, "rules.json", `{"rules":[{"value":"ok"},{"value":"  "}]}`))
	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.ErrorContains(t, err, "rule 2")
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	_, err := Load(writeRules(t, "rules.yaml", "rules: []"))
	assert.ErrorContains(t, err, `unsupported rules file extension ".yaml"`)
}

func TestLoadReportsDecodeErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(writeRules(t, "rules.toml", "[[rules]\nvalue ="))
	assert.ErrorContains(t, err, "decode rules")
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorContains(t, err, "read rules file")
}
