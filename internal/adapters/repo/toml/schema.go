package toml

import (
	"fmt"

	"github.com/bnema/powertrack-cli/internal/domain"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Profiles []profileSchema `toml:"profiles"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported profiles schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type profileSchema struct {
	Name        string  `toml:"name"`
	AccountName string  `toml:"account_name"`
	Platform    string  `toml:"platform,omitempty"`
	StreamName  string  `toml:"stream_name,omitempty"`
	User        string  `toml:"user"`
	PasswordRef string  `toml:"password_ref,omitempty"`
	BatchSize   int     `toml:"batch_size,omitempty"`
	RulesRate   float64 `toml:"rules_rate,omitempty"`
}

func toSchema(profile domain.Profile) profileSchema {
	return profileSchema{
		Name:        string(profile.Name),
		AccountName: profile.AccountName,
		Platform:    profile.Platform,
		StreamName:  profile.StreamName,
		User:        profile.User,
		PasswordRef: profile.PasswordRef,
		BatchSize:   profile.BatchSize,
		RulesRate:   profile.RulesRate,
	}
}

func fromSchema(entry profileSchema) domain.Profile {
	profile := domain.Profile{
		Name:        domain.ProfileName(entry.Name),
		AccountName: entry.AccountName,
		Platform:    entry.Platform,
		StreamName:  entry.StreamName,
		User:        entry.User,
		PasswordRef: entry.PasswordRef,
		BatchSize:   entry.BatchSize,
		RulesRate:   entry.RulesRate,
	}
	profile.ApplyDefaults()
	return profile
}
