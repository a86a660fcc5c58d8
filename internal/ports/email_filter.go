package ports

import (
	"context"

	"github.com/mikey/phishing-analyzer/internal/core"
)

// EmailFilter defines the interface for the message entry points
type EmailFilter interface {
	// ProcessMessage analyzes a raw message and returns its assessment
	ProcessMessage(ctx context.Context, raw []byte) (*core.Assessment, error)

	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}
