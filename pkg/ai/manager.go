package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Manager manages generation providers with fallback logic
type Manager struct {
	providers []Provider
	logger    *zap.Logger
}

// NewManager creates a new provider manager
func NewManager(providers []Provider, logger *zap.Logger) *Manager {
	return &Manager{
		providers: providers,
		logger:    logger,
	}
}

// GetAvailableProvider returns the first available provider
func (m *Manager) GetAvailableProvider() Provider {
	for _, provider := range m.providers {
		if provider.IsAvailable() {
			return provider
		}
	}
	return nil
}

// GenerateReply tries each available provider in order until one succeeds.
func (m *Manager) GenerateReply(ctx context.Context, req *ReplyRequest) (string, error) {
	if len(m.providers) == 0 {
		return "", fmt.Errorf("no generation providers configured")
	}

	var lastErr error
	for _, provider := range m.providers {
		if !provider.IsAvailable() {
			continue
		}

		reply, err := provider.GenerateReply(ctx, req)
		if err == nil {
			m.logger.Debug("Generated reply",
				zap.String("provider", provider.Name()),
			)
			return reply, nil
		}

		lastErr = err
		m.logger.Warn("Generation provider failed, trying next",
			zap.String("provider", provider.Name()),
			zap.Error(err),
		)
	}

	if lastErr == nil {
		return "", fmt.Errorf("no generation providers available")
	}
	return "", fmt.Errorf("all generation providers failed. Last error: %w", lastErr)
}
