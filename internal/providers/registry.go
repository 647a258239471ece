package providers

import (
	"context"
	"fmt"
	"strings"

	"contentfabric/internal/domain"
	"contentfabric/internal/infra"
)

// Keys maps provider names to API keys.
type Keys map[string]string

// Registry dispatches requests to the generator of the named provider,
// throttled per provider.
type Registry struct {
	generators map[string]Generator
	throttle   *Throttle
	logger     infra.Logger
}

func NewRegistry(throttle *Throttle, logger infra.Logger) *Registry {
	if throttle == nil {
		throttle = NewThrottle(0)
	}
	return &Registry{generators: make(map[string]Generator), throttle: throttle, logger: logger}
}

// Register binds g under name, replacing any previous binding.
func (r *Registry) Register(name string, g Generator) {
	r.generators[strings.ToLower(strings.TrimSpace(name))] = g
}

// Lookup returns the generator bound to name.
func (r *Registry) Lookup(name string) (Generator, bool) {
	g, ok := r.generators[strings.ToLower(strings.TrimSpace(name))]
	return g, ok
}

// Generate throttles and runs req against its provider. Provider errors are
// wrapped as domain.ErrProviderFailure.
func (r *Registry) Generate(ctx context.Context, req Request) (*Output, error) {
	name := strings.ToLower(strings.TrimSpace(req.Provider))
	g, ok := r.generators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, req.Provider)
	}
	if err := r.throttle.Wait(ctx, name); err != nil {
		return nil, err
	}
	out, err := g.Generate(ctx, req)
	if err != nil {
		return nil, domain.ProviderFailure(name, err)
	}
	return out, nil
}

// Endpoints overrides provider base URLs; empty fields use the public APIs.
type Endpoints struct {
	OpenAI string
	Qwen   string
}

// Build registers a generator for every known provider. Providers without a
// key are served by the synthetic generator so local runs need no
// credentials.
func Build(ctx context.Context, keys Keys, endpoints Endpoints, synthetic *Synthetic, throttle *Throttle, logger infra.Logger) (*Registry, error) {
	r := NewRegistry(throttle, logger)
	r.Register(NameSynthetic, synthetic)

	if key := strings.TrimSpace(keys[NameOpenAI]); key != "" {
		r.Register(NameOpenAI, NewOpenAIImages(key, endpoints.OpenAI))
	} else {
		r.fallback(NameOpenAI, synthetic)
	}
	if key := strings.TrimSpace(keys[NameGoogle]); key != "" {
		g, err := NewGemini(ctx, key)
		if err != nil {
			return nil, err
		}
		r.Register(NameGoogle, g)
	} else {
		r.fallback(NameGoogle, synthetic)
	}
	if key := strings.TrimSpace(keys[NameAnthropic]); key != "" {
		r.Register(NameAnthropic, NewClaude(key))
	} else {
		r.fallback(NameAnthropic, synthetic)
	}
	if key := strings.TrimSpace(keys[NameQwen]); key != "" {
		r.Register(NameQwen, NewQwen(key, endpoints.Qwen, nil))
	} else {
		r.fallback(NameQwen, synthetic)
	}
	return r, nil
}

func (r *Registry) fallback(name string, synthetic *Synthetic) {
	r.logger.Warn().Str("provider", name).Msg("providers: no api key configured, using synthetic output")
	r.Register(name, synthetic)
}
