package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bnema/powertrack-cli/internal/adapters/framing"
	"github.com/bnema/powertrack-cli/internal/adapters/httptransport"
	"github.com/bnema/powertrack-cli/internal/adapters/jsoncodec"
	metricsadapter "github.com/bnema/powertrack-cli/internal/adapters/metrics"
	tomlrepo "github.com/bnema/powertrack-cli/internal/adapters/repo/toml"
	chainstore "github.com/bnema/powertrack-cli/internal/adapters/secrets/chain"
	"github.com/bnema/powertrack-cli/internal/application"
	"github.com/bnema/powertrack-cli/internal/config"
	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/bnema/powertrack-cli/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

type globalOptions struct {
	configFile  string
	profile     string
	user        string
	password    string
	debug       bool
	metricsAddr string
}

type app struct {
	cfg         config.Config
	profileName domain.ProfileName
	override    domain.Credentials
	profiles    *application.ProfileService
	transport   ports.Transport
	decoder     ports.StreamDecoder
	codec       ports.Codec
	metrics     *metricsadapter.Recorder
	logger      *slog.Logger
	clock       ports.Clock

	metricsServer *http.Server
}

func (a *app) wire(cmd *cobra.Command, opts globalOptions) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	repo, err := tomlrepo.NewRepository(cfg.Viper)
	if err != nil {
		return fmt.Errorf("wire profile repository: %w", err)
	}

	secretStore, err := chainstore.Open(cfg.SecretsBackend, cfg.SecretsPath)
	if err != nil {
		return fmt.Errorf("wire secret store: %w", err)
	}

	registry := prometheus.NewRegistry()
	recorder, err := metricsadapter.NewRecorder(registry)
	if err != nil {
		return fmt.Errorf("wire metrics: %w", err)
	}

	password := opts.password
	if password == "" {
		password = cfg.Password
	}

	*a = app{
		cfg:         cfg,
		profileName: domain.ProfileName(opts.profile),
		override:    domain.Credentials{User: opts.user, Password: password},
		profiles:    application.NewProfileService(repo, secretStore),
		transport: &httptransport.Client{
			HTTPClient:     &http.Client{},
			RequestTimeout: cfg.RequestTimeout,
			ConnectTimeout: cfg.ConnectTimeout,
		},
		decoder: framing.Decoder{},
		codec:   jsoncodec.Codec{},
		metrics: recorder,
		logger:  logger,
		clock:   ports.SystemClock{},
	}

	if opts.metricsAddr != "" {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if err := a.serveMetrics(opts.metricsAddr, registry); err != nil {
			return err
		}
	}

	return nil
}

func (a *app) serveMetrics(addr string, registry *prometheus.Registry) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	a.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metricsServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.Debug("serving metrics", "addr", listener.Addr().String())

	return nil
}

func (a *app) close(ctx context.Context) error {
	if a.metricsServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return a.metricsServer.Shutdown(shutdownCtx)
}

// resolveProfile loads the selected profile and its credentials.
func (a *app) resolveProfile(ctx context.Context) (domain.Profile, domain.Credentials, error) {
	profile, creds, err := a.profiles.Resolve(ctx, a.profileName, a.override)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return domain.Profile{}, domain.Credentials{}, fmt.Errorf("profile %q not found; run `pt profile set --profile %s --account <name>`: %w", a.profileName, a.profileName, err)
		}
		return domain.Profile{}, domain.Credentials{}, err
	}
	return profile, creds, nil
}

func (a *app) newSession(descriptor domain.ConnectionDescriptor) *application.Session {
	return application.NewSession(a.transport, a.decoder, descriptor, application.SessionOptions{
		IdleTimeout: a.cfg.IdleTimeout,
		Metrics:     a.metrics,
		Logger:      a.logger,
	})
}

func (a *app) newReconciler(profile domain.Profile, creds domain.Credentials, progress func(application.BatchProgress)) *application.Reconciler {
	var limiter *rate.Limiter
	if profile.RulesRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(profile.RulesRate), 1)
	}

	return application.NewReconciler(a.transport, a.codec, application.RuleTarget{
		AccountName: profile.AccountName,
		URL:         a.cfg.Endpoints.RulesURL(profile),
		Credentials: creds,
	}, application.ReconcilerOptions{
		BatchSize: profile.BatchSize,
		Limiter:   limiter,
		Listener: func(ev domain.Event) {
			a.logger.Debug("rules event", "channel", ev.Channel.String(), "error", ev.Err)
		},
		Progress: progress,
		Metrics:  a.metrics,
		Logger:   a.logger,
	})
}
