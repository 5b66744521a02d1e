// Package provider defines the LLM provider contract the engine consumes
// and a resilience wrapper applied to any concrete implementation.
package provider

import (
	"context"

	"github.com/clinical-safety-engine/internal/domain"
)

// Provider produces AI responses. Concrete implementations wrap vendor SDKs
// or HTTP gateways; the engine only depends on this interface.
type Provider interface {
	// Generate produces one complete response.
	Generate(ctx context.Context, req *domain.AIRequest) (*domain.AIResponse, error)
	// Stream produces the response incrementally. The returned channel is
	// closed when the response is complete or the context is cancelled.
	Stream(ctx context.Context, req *domain.AIRequest) (<-chan string, error)
}
