package provider

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-safety-engine/internal/domain"
)

// stubProvider returns canned responses or a fixed error.
type stubProvider struct {
	resp   *domain.AIResponse
	chunks []string
	err    error
	calls  int
}

func (p *stubProvider) Generate(_ context.Context, _ *domain.AIRequest) (*domain.AIResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.resp, nil
}

func (p *stubProvider) Stream(_ context.Context, _ *domain.AIRequest) (<-chan string, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	out := make(chan string, len(p.chunks))
	for _, chunk := range p.chunks {
		out <- chunk
	}
	close(out)
	return out, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() ResilientConfig {
	cfg := DefaultResilientConfig()
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 1000
	return cfg
}

func TestResilientGeneratePassesThrough(t *testing.T) {
	inner := &stubProvider{resp: &domain.AIResponse{Content: "answer"}}
	wrapped := NewResilient(inner, testConfig(), quietLogger())

	resp, err := wrapped.Generate(context.Background(), &domain.AIRequest{Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Content)
	assert.Equal(t, 1, inner.calls)
}

func TestResilientGenerateWrapsProviderError(t *testing.T) {
	cause := errors.New("upstream 500")
	wrapped := NewResilient(&stubProvider{err: cause}, testConfig(), quietLogger())

	_, err := wrapped.Generate(context.Background(), &domain.AIRequest{Prompt: "q"})
	require.Error(t, err)
	assert.True(t, domain.IsDependencyError(err))
	assert.ErrorIs(t, err, cause)
}

func TestResilientBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &stubProvider{err: errors.New("down")}
	wrapped := NewResilient(inner, testConfig(), quietLogger())

	for i := 0; i < 5; i++ {
		_, err := wrapped.Generate(context.Background(), &domain.AIRequest{Prompt: "q"})
		require.Error(t, err)
	}
	callsBeforeOpen := inner.calls

	// Open breaker rejects without reaching the provider
	_, err := wrapped.Generate(context.Background(), &domain.AIRequest{Prompt: "q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, callsBeforeOpen, inner.calls)
}

func TestResilientStreamPassesThrough(t *testing.T) {
	inner := &stubProvider{chunks: []string{"a", "b"}}
	wrapped := NewResilient(inner, testConfig(), quietLogger())

	chunks, err := wrapped.Stream(context.Background(), &domain.AIRequest{Prompt: "q"})
	require.NoError(t, err)

	var got []string
	for chunk := range chunks {
		got = append(got, chunk)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestResilientRateLimitCancellation(t *testing.T) {
	cfg := testConfig()
	cfg.RequestsPerSecond = 0.001
	cfg.Burst = 1
	wrapped := NewResilient(&stubProvider{resp: &domain.AIResponse{Content: "x"}}, cfg, quietLogger())

	// First call consumes the burst token
	_, err := wrapped.Generate(context.Background(), &domain.AIRequest{Prompt: "q"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = wrapped.Generate(ctx, &domain.AIRequest{Prompt: "q"})
	require.Error(t, err)
	assert.True(t, domain.IsDependencyError(err))
}
