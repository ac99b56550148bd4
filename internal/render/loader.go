package render

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"text/template"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentFetches bounds the template downloads in flight.
const maxConcurrentFetches = 8

// TemplateSource is the part of the API client the loader needs.
type TemplateSource interface {
	RendererTemplates(ctx context.Context) (map[string]string, error)
	Text(ctx context.Context, ref string) (string, error)
}

// LoadReport describes how a registry load settled.
type LoadReport struct {
	// Loaded lists the renderer keys that were installed, sorted.
	Loaded []string

	// Failures maps renderer keys to the fetch or compile error that kept
	// them out of the registry.
	Failures map[string]error
}

// Degraded reports whether any renderer failed to load.
func (r LoadReport) Degraded() bool {
	return len(r.Failures) > 0
}

// Loader fetches the renderer index and every template it lists.
type Loader struct {
	source TemplateSource
	log    *zap.Logger
}

// NewLoader creates a loader reading from source.
func NewLoader(source TemplateSource, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{source: source, log: log}
}

// Load fetches all templates concurrently and returns once every fetch has
// settled. Individual failures never stall or abort the load: the registry
// holds whatever subset succeeded and the report lists the rest. The error
// is non-nil only when the index itself could not be fetched, in which case
// the registry is empty.
func (l *Loader) Load(ctx context.Context) (*Registry, LoadReport, error) {
	report := LoadReport{Failures: make(map[string]error)}

	index, err := l.source.RendererTemplates(ctx)
	if err != nil {
		l.log.Warn("renderer index fetch failed", zap.Error(err))
		return NewRegistry(nil), report, fmt.Errorf("fetching renderer index: %w", err)
	}

	var (
		mu        sync.Mutex
		templates = make(map[string]*template.Template, len(index))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for key, ref := range index {
		g.Go(func() error {
			tmpl, err := l.fetchOne(gctx, key, ref)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures[key] = err
				return nil
			}
			templates[key] = tmpl
			return nil
		})
	}
	_ = g.Wait()

	for key, ferr := range report.Failures {
		l.log.Warn("renderer template unavailable",
			zap.String("renderer", key),
			zap.Error(ferr),
		)
	}

	for key := range templates {
		report.Loaded = append(report.Loaded, key)
	}
	sort.Strings(report.Loaded)

	return NewRegistry(templates), report, nil
}

func (l *Loader) fetchOne(ctx context.Context, key, ref string) (*template.Template, error) {
	body, err := l.source.Text(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetching template %q: %w", key, err)
	}
	return Compile(key, body)
}
