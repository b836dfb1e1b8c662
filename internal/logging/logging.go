// Package logging constructs the zap.Logger shared by the Controller
// and every Peer session, in the style of distributed-queue's
// zap.Must(zap.NewProduction()) startup line.
package logging

import "go.uber.org/zap"

// New builds a production-configured zap.Logger when dev is false, or
// a development-configured one (console encoding, debug level) when
// dev is true.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Must is New, panicking on error, for use at process startup where
// there is no sensible recovery (mirrors zap.Must in
// distributed-queue/main.go).
func Must(dev bool) *zap.Logger {
	logger, err := New(dev)
	if err != nil {
		panic(err)
	}
	return logger
}
