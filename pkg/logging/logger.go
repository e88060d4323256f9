// Package logging provides zap logger construction and helpers that keep
// credentials out of log output.
package logging

import "go.uber.org/zap"

// New builds a logger for the given environment. "local" and "dev" get the
// human-readable development encoder; everything else gets production JSON.
func New(env string) (*zap.Logger, error) {
	switch env {
	case "local", "dev", "development":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}
