package domain

import (
	"fmt"
	"strings"
)

const (
	DefaultPlatform   = "twitter"
	DefaultStreamName = "prod"
	DefaultBatchSize  = 1000
)

type ProfileName string

type Credentials struct {
	User     string
	Password string
}

// Profile identifies one account and the stream its rules belong to.
type Profile struct {
	Name        ProfileName
	AccountName string
	Platform    string
	StreamName  string
	User        string
	// PasswordRef points to a secret-store entry, typically "gnip://<profile>/password".
	PasswordRef string
	BatchSize   int
	// RulesRate caps rule API calls per second; zero leaves them unpaced.
	RulesRate float64
}

func (p *Profile) ApplyDefaults() {
	if p == nil {
		return
	}
	if strings.TrimSpace(p.Platform) == "" {
		p.Platform = DefaultPlatform
	}
	if strings.TrimSpace(p.StreamName) == "" {
		p.StreamName = DefaultStreamName
	}
	if p.BatchSize <= 0 {
		p.BatchSize = DefaultBatchSize
	}
}

func (p Profile) Validate() error {
	if strings.TrimSpace(string(p.Name)) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.AccountName) == "" {
		return fmt.Errorf("account name is required")
	}
	if p.BatchSize < 0 {
		return fmt.Errorf("batch size must not be negative")
	}
	if p.RulesRate < 0 {
		return fmt.Errorf("rules rate must not be negative")
	}
	return nil
}

// ValidateIdentity is the fail-fast check every network operation runs first.
func ValidateIdentity(accountName string, creds Credentials) error {
	if strings.TrimSpace(accountName) == "" {
		return configError("account_name", "you must include a Gnip account name")
	}
	if creds.User == "" && creds.Password == "" {
		return configError("credentials", "missing account credentials")
	}
	return nil
}
