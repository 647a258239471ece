package httpapi

import (
	stdhttp "net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"contentfabric/internal/http/handlers"
	"contentfabric/internal/infra/geoip"
	"contentfabric/internal/middleware"
)

// Options configure the cross-cutting middleware.
type Options struct {
	CORSOrigins     []string
	RateLimitPerMin int
	Geo             geoip.CountryResolver
}

// SplitOrigins parses a comma separated CORS_ORIGIN value.
func SplitOrigins(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(app.Logger, opts.Geo),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
	)

	if app.Files != nil {
		r.Handle("/static/*", stdhttp.StripPrefix("/static/", stdhttp.FileServer(stdhttp.Dir(app.Files.BasePath()))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin))

		r.Get("/health", app.Health)
		r.Get("/openapi.json", app.OpenAPIJSON)
		r.Get("/docs", app.OpenAPIDocs)

		r.Route("/parameters", func(r chi.Router) {
			r.Get("/", app.ListParameters)
			r.Post("/", app.CreateParameter)
			r.Get("/{id}", app.GetParameter)
			r.Patch("/{id}", app.UpdateParameter)
			r.Delete("/{id}", app.DeleteParameter)
		})

		r.Route("/prompt-templates", func(r chi.Router) {
			r.Get("/", app.ListTemplates)
			r.Post("/", app.CreateTemplate)
			r.Get("/{id}", app.GetTemplate)
			r.Patch("/{id}", app.UpdateTemplate)
			r.Delete("/{id}", app.DeleteTemplate)
			r.Post("/{id}/expand", app.ExpandTemplate)
		})

		r.Route("/generated-prompts", func(r chi.Router) {
			r.Get("/", app.ListPrompts)
			r.Post("/generate", app.GeneratePrompts)
			r.Get("/{id}", app.GetPrompt)
			r.Delete("/{id}", app.DeletePrompt)
		})

		r.Route("/generations", func(r chi.Router) {
			r.Get("/", app.ListGenerations)
			r.Post("/", app.CreateGeneration)
			r.Get("/{id}", app.GetGeneration)
			r.Delete("/{id}", app.DeleteGeneration)
			r.Post("/{id}/start", app.StartGeneration)
			r.Get("/{id}/progress", app.GenerationProgress)
			r.Patch("/{id}/tasks/{index}", app.UpdateGenerationTask)
			r.Get("/{id}/results", app.GenerationResults)
			r.Get("/{id}/results.zip", app.GenerationResultsZip)
		})

		r.Route("/generation-results", func(r chi.Router) {
			r.Get("/", app.ListResults)
			r.Get("/{id}", app.GetResult)
			r.Delete("/{id}", app.DeleteResult)
		})
	})

	return r
}
