package app

import (
	"context"
	"errors"
)

type contextKey struct{}

var errNoApp = errors.New("app not initialized")

// WithApp stores the App in ctx for subcommands
func WithApp(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext retrieves the App stored by WithApp
func FromContext(ctx context.Context) (*App, error) {
	a, ok := ctx.Value(contextKey{}).(*App)
	if !ok || a == nil {
		return nil, errNoApp
	}
	return a, nil
}
