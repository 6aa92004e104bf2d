package container

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/anime-shed/kyc-console-go/internal/admin"
	"github.com/anime-shed/kyc-console-go/internal/capability"
	"github.com/anime-shed/kyc-console-go/internal/config"
	"github.com/anime-shed/kyc-console-go/internal/factory"
	"github.com/anime-shed/kyc-console-go/internal/logger"
	"github.com/anime-shed/kyc-console-go/internal/observer"
	"github.com/anime-shed/kyc-console-go/internal/playground"
	"github.com/anime-shed/kyc-console-go/internal/provider"
	"github.com/anime-shed/kyc-console-go/internal/quota"
	"github.com/anime-shed/kyc-console-go/internal/repository"
	"github.com/anime-shed/kyc-console-go/internal/session"
	"github.com/anime-shed/kyc-console-go/internal/transport"
	"github.com/anime-shed/kyc-console-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config     *config.Config
	creds      *session.Credentials
	provider   provider.Provider
	table      *capability.Table
	quota      *quota.Tracker
	inputs     *repository.SourceRepository
	uploads    *validation.UploadValidator
	playground *playground.Orchestrator
	admin      *admin.Service
	publisher  observer.Subject
	registry   *prometheus.Registry
	handler    http.Handler
}

type options struct {
	localInputs bool
	store       session.Store
	provider    provider.Provider
}

// Option customizes the dependency graph
type Option func(*options)

// WithLocalInputs lets playground inputs name local files. Only the CLI sets it.
func WithLocalInputs() Option {
	return func(o *options) { o.localInputs = true }
}

// WithSessionStore replaces the file-backed session store
func WithSessionStore(s session.Store) Option {
	return func(o *options) { o.store = s }
}

// WithProvider bypasses provider selection, for tests
func WithProvider(p provider.Provider) Option {
	return func(o *options) { o.provider = p }
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil && cfg.StateFile != "" {
		o.store = session.NewFileStore(cfg.StateFile)
	}

	var sessionOpts []session.Option
	if o.store != nil {
		sessionOpts = append(sessionOpts, session.WithStore(o.store), session.WithTokenPersistence(cfg.PersistToken))
	}
	creds, err := session.New(cfg.APIBaseURL, sessionOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	creds.SetUnauthorizedHandler(func(gen uint64) {
		// a 401 for a request sent before the latest login must not end that login
		cleared, err := creds.ClearIfGeneration(gen)
		switch {
		case err != nil:
			logger.WithError(err).Error("Failed to persist cleared session")
		case cleared:
			logger.Warn("Backend rejected the session, clearing credentials")
		default:
			logger.WithField("generation", gen).Info("Ignoring 401 for a superseded session")
		}
	})

	components := factory.NewComponentFactory(cfg, creds)
	backend := o.provider
	if backend == nil {
		backend, err = components.ProviderFactory.CreateProvider(factory.ProviderTypeFor(cfg.MockMode))
		if err != nil {
			return nil, err
		}
	}

	table, err := loadCapabilities(cfg.CapabilityFile)
	if err != nil {
		return nil, err
	}

	inputs, err := components.NewInputRepository(cfg, o.localInputs)
	if err != nil {
		return nil, fmt.Errorf("failed to build input sources: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(observer.NewMetricsObserver(registry))

	tracker := quota.NewTracker(backend)
	uploads := validation.NewUploadValidator(cfg.UploadMaxBytes)
	orchestrator := playground.New(backend, creds, table, tracker,
		playground.WithSubject(publisher),
		playground.WithUploadValidator(uploads),
		playground.WithFetchWorkers(cfg.SearchFetchWorkers),
		playground.WithUpgradeURL(cfg.UpgradeURL),
	)
	observer.RegisterWorkerPool(registry, "candidate_images", func() observer.WorkerStats {
		s := orchestrator.FetchPoolStats()
		return observer.WorkerStats{Total: s.TotalJobs, Completed: s.CompletedJobs, Active: s.ActiveWorkers}
	})
	adminSvc := admin.NewService(backend)

	c := &Container{
		config:     cfg,
		creds:      creds,
		provider:   backend,
		table:      table,
		quota:      tracker,
		inputs:     inputs,
		uploads:    uploads,
		playground: orchestrator,
		admin:      adminSvc,
		publisher:  publisher,
		registry:   registry,
	}
	c.handler = transport.NewHandler(transport.Deps{
		Config:     cfg,
		Creds:      creds,
		Provider:   backend,
		Table:      table,
		Quota:      tracker,
		Inputs:     inputs,
		Uploads:    uploads,
		Playground: orchestrator,
		Admin:      adminSvc,
		Publisher:  publisher,
		Gatherer:   registry,
	})

	logger.WithField("mock_mode", cfg.MockMode).Info("Console dependencies initialized")
	return c, nil
}

func loadCapabilities(path string) (*capability.Table, error) {
	if path == "" {
		return capability.Default()
	}
	table, err := capability.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load capability table: %w", err)
	}
	return table, nil
}

// Close stops background workers
func (c *Container) Close() {
	c.playground.Close()
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

func (c *Container) Credentials() *session.Credentials { return c.creds }
func (c *Container) Provider() provider.Provider { return c.provider }
func (c *Container) Capabilities() *capability.Table { return c.table }
func (c *Container) Quota() *quota.Tracker { return c.quota }
func (c *Container) Inputs() *repository.SourceRepository { return c.inputs }
func (c *Container) Uploads() *validation.UploadValidator { return c.uploads }
func (c *Container) Playground() *playground.Orchestrator { return c.playground }
func (c *Container) Admin() *admin.Service { return c.admin }
func (c *Container) Publisher() observer.Subject { return c.publisher }
