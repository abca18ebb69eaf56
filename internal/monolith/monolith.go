// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"errors"
	"sync"

	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/config"
	"github.com/fd1az/token-price-engine/internal/di"
	"github.com/fd1az/token-price-engine/internal/health"
	"github.com/fd1az/token-price-engine/internal/logger"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	AssetRegistry() *asset.Registry
	Health() *health.Server
	Services() di.ServiceRegistry
	// OnClose registers a release function run by Close in reverse order.
	OnClose(fn func() error)
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	assetRegistry *asset.Registry
	health        *health.Server
	container     di.Container

	mu      sync.Mutex
	closers []func() error
}

// New creates a new Monolith instance.
func New(cfg *config.Config, log logger.LoggerInterface, healthServer *health.Server) *app {
	// Use default asset registry (pre-populated with quote assets)
	assetRegistry := asset.DefaultRegistry()

	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("assetRegistry", assetRegistry)
	container.Register("health", healthServer)

	return &app{
		config:        cfg,
		logger:        log,
		assetRegistry: assetRegistry,
		health:        healthServer,
		container:     container,
	}
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *app) Health() *health.Server {
	return a.health
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

func (a *app) OnClose(fn func() error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, fn)
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close releases resources registered through OnClose, last first.
func (a *app) Close() error {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
