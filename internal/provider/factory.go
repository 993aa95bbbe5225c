package provider

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"slackbridge/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
)

// BackendConstructor creates a backend from the agent config section.
type BackendConstructor func(cfg config.AgentConfig, deps Deps) (Backend, error)

// Deps are the shared clients handed to backend constructors.
type Deps struct {
	AWS        aws.Config
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Factory creates and caches agent backends from config.
type Factory struct {
	cfg          *config.Config
	deps         Deps
	constructors map[string]BackendConstructor
	cache        map[string]Backend
	mu           sync.Mutex
}

// NewFactory creates a backend factory with the built-in constructors registered.
func NewFactory(cfg *config.Config, deps Deps) *Factory {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	f := &Factory{
		cfg:          cfg,
		deps:         deps,
		constructors: make(map[string]BackendConstructor),
		cache:        make(map[string]Backend),
	}
	f.registerDefaults()
	return f
}

// RegisterConstructor adds (or replaces) a backend constructor by name.
func (f *Factory) RegisterConstructor(name string, ctor BackendConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[name] = ctor
}

func (f *Factory) registerDefaults() {
	f.constructors["bedrock"] = func(ac config.AgentConfig, deps Deps) (Backend, error) {
		return NewBedrock(BedrockConfig{
			Client:      bedrockagentruntime.NewFromConfig(deps.AWS),
			AgentID:     ac.BedrockAgentID,
			AliasID:     ac.BedrockAliasID,
			EnableTrace: ac.EnableTrace,
			Logger:      deps.Logger,
		})
	}

	f.constructors["http"] = func(ac config.AgentConfig, deps Deps) (Backend, error) {
		return NewHTTP(HTTPConfig{
			Endpoint:   ac.Endpoint,
			APIKey:     ac.APIKey,
			Timeout:    f.cfg.AgentTimeout(),
			MaxRetries: ac.MaxRetries,
			Client:     deps.HTTPClient,
			Logger:     deps.Logger,
		})
	}
}

// Get returns the backend with the given name, creating it on first use.
func (f *Factory) Get(name string) (Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.cache[name]; ok {
		return cached, nil
	}
	ctor, ok := f.constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown agent backend: %s", name)
	}
	b, err := ctor(f.cfg.Agent, f.deps)
	if err != nil {
		return nil, fmt.Errorf("agent backend %s: %w", name, err)
	}
	f.cache[name] = b
	return b, nil
}

// Backend returns the configured backend. A comma-separated agent.backend
// yields a Failover chain in the listed order.
func (f *Factory) Backend() (Backend, error) {
	names := f.cfg.AgentBackends()
	if len(names) == 0 {
		return nil, fmt.Errorf("no agent backend configured")
	}
	chain := make([]Backend, 0, len(names))
	for _, name := range names {
		b, err := f.Get(name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, b)
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return NewFailover(chain, f.deps.Logger), nil
}

// Client wraps the configured backend in a fallback-producing Client.
func (f *Factory) Client() (*Client, error) {
	b, err := f.Backend()
	if err != nil {
		return nil, err
	}
	return NewClient(ClientConfig{
		Backend:         b,
		FallbackMessage: f.cfg.Agent.FallbackMessage,
		Logger:          f.deps.Logger,
	}), nil
}
