// Package classifier adapts opaque pre-trained models to the prediction
// pipeline. A model is reached through a handle: a local artifact file or a
// remote inference URL.
package classifier

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"healthbridge/internal/domain"
)

// Model classifies a table of rows. Column names and order must match what
// the model was trained on.
type Model interface {
	Predict(ctx context.Context, columns []string, rows [][]domain.Value) ([]string, error)
}

// Loader resolves a handle into a ready model.
type Loader interface {
	Load(ctx context.Context, handle string) (Model, error)
}

type LoaderFunc func(ctx context.Context, handle string) (Model, error)

func (f LoaderFunc) Load(ctx context.Context, handle string) (Model, error) { return f(ctx, handle) }

// DefaultLoader picks a model implementation from the handle: http(s) URLs
// are remote models, .yml/.yaml/.json files are artifact models.
type DefaultLoader struct {
	// BaseDir resolves relative artifact paths.
	BaseDir    string
	HTTPClient *http.Client
}

func (l DefaultLoader) Load(ctx context.Context, handle string) (Model, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, fmt.Errorf("empty model handle")
	}
	lower := strings.ToLower(handle)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		client := l.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: 30 * time.Second}
		}
		return NewRemote(handle, client)
	}
	switch strings.ToLower(filepath.Ext(handle)) {
	case ".yml", ".yaml", ".json":
		path := handle
		if !filepath.IsAbs(path) && l.BaseDir != "" {
			path = filepath.Join(l.BaseDir, path)
		}
		return LoadArtifact(path)
	}
	return nil, fmt.Errorf("unsupported model handle %s", handle)
}

// Normalizer maps raw model output to canonical labels. A nil Normalizer
// passes labels through unchanged.
type Normalizer map[string]domain.Label

func (n Normalizer) Label(raw string) (domain.Label, bool) {
	if n == nil {
		return domain.Label(raw), raw != ""
	}
	l, ok := n[raw]
	return l, ok
}
