package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tomlrepo "github.com/bnema/powertrack-cli/internal/adapters/repo/toml"
	filestore "github.com/bnema/powertrack-cli/internal/adapters/secrets/file"
	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "PT"

	KeyStreamEndpoint     = "endpoints.stream"
	KeyComplianceEndpoint = "endpoints.compliance"
	KeySearchEndpoint     = "endpoints.search"
	KeyAPIEndpoint        = "endpoints.api"
	KeySecretsBackend     = "secrets.backend"
	KeyConnectTimeout     = "stream.connect_timeout"
	KeyIdleTimeout        = "stream.idle_timeout"
	KeyRequestTimeout     = "rules.request_timeout"
	KeyPassword           = "password"

	DefaultConnectTimeout = 30 * time.Second
	DefaultIdleTimeout    = 90 * time.Second
	DefaultRequestTimeout = 60 * time.Second
)

// Config is the resolved settings of one pt invocation.
type Config struct {
	// Viper keeps the raw settings for adapters that read their own keys.
	Viper *viper.Viper

	File           string
	Endpoints      domain.Endpoints
	SecretsBackend string
	SecretsPath    string
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	// Password overrides the stored profile password when set (PT_PASSWORD).
	Password string
}

// DefaultDir is ~/.powertrack.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, ".powertrack"), nil
}

// Load reads the optional config file and applies PT_ environment
// overrides. An empty file means <DefaultDir>/config.toml.
func Load(file string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		dir, err := DefaultDir()
		if err != nil {
			return Config{}, err
		}
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyStreamEndpoint, domain.DefaultStreamBaseURL)
	v.SetDefault(KeyComplianceEndpoint, domain.DefaultComplianceBaseURL)
	v.SetDefault(KeySearchEndpoint, domain.DefaultSearchBaseURL)
	v.SetDefault(KeyAPIEndpoint, domain.DefaultAPIBaseURL)
	v.SetDefault(KeySecretsBackend, "file")
	v.SetDefault(KeyConnectTimeout, DefaultConnectTimeout)
	v.SetDefault(KeyIdleTimeout, DefaultIdleTimeout)
	v.SetDefault(KeyRequestTimeout, DefaultRequestTimeout)

	if path, err := tomlrepo.DefaultPath(); err == nil {
		v.SetDefault(tomlrepo.ProfilesPathKey, path)
	}
	if root, err := filestore.DefaultRoot(); err == nil {
		v.SetDefault(filestore.SecretsPathKey, root)
	}
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Viper: v,
		File:  v.ConfigFileUsed(),
		Endpoints: domain.Endpoints{
			Stream:     v.GetString(KeyStreamEndpoint),
			Compliance: v.GetString(KeyComplianceEndpoint),
			Search:     v.GetString(KeySearchEndpoint),
			API:        v.GetString(KeyAPIEndpoint),
		},
		SecretsBackend: v.GetString(KeySecretsBackend),
		SecretsPath:    v.GetString(filestore.SecretsPathKey),
		ConnectTimeout: v.GetDuration(KeyConnectTimeout),
		IdleTimeout:    v.GetDuration(KeyIdleTimeout),
		RequestTimeout: v.GetDuration(KeyRequestTimeout),
		Password:       v.GetString(KeyPassword),
	}

	if err := cfg.Endpoints.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	for key, value := range map[string]time.Duration{
		KeyConnectTimeout: cfg.ConnectTimeout,
		KeyIdleTimeout:    cfg.IdleTimeout,
		KeyRequestTimeout: cfg.RequestTimeout,
	} {
		if value < 0 {
			return Config{}, fmt.Errorf("invalid config: %s must not be negative", key)
		}
	}

	return cfg, nil
}
