// Package storage provides the file handling around a render: a private
// scratch workspace per render and the Publisher port that delivers the
// final video to object storage.
package storage

import (
	"context"
	"errors"
)

// ErrPublisherNotConfigured is returned when a publish is attempted
// without object storage configuration.
var ErrPublisherNotConfigured = errors.New("object storage is not configured")

// Publisher delivers a finished file and returns a URL it can be retrieved from.
type Publisher interface {
	// Publish uploads the file at localPath with the given content type.
	// The object name is derived from the base name of localPath.
	Publish(ctx context.Context, localPath, contentType string) (url string, err error)
}

// UnconfiguredPublisher is used when no bucket is configured. The service
// still starts; every publish fails.
type UnconfiguredPublisher struct{}

// Publish always returns ErrPublisherNotConfigured.
func (UnconfiguredPublisher) Publish(_ context.Context, _, _ string) (string, error) {
	return "", ErrPublisherNotConfigured
}
