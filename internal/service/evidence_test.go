package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-safety-engine/internal/domain"
)

func TestCatalogEvidenceGathererMatchesKeywords(t *testing.T) {
	gatherer, err := NewCatalogEvidenceGatherer(16, testLogger())
	require.NoError(t, err)

	req := &domain.AIRequest{Prompt: "anticoagulation advice"}
	resp := &domain.AIResponse{Content: "Warfarin dosing should be adjusted; monitor for neutropenia during chemotherapy."}

	sources, err := gatherer.GatherEvidence(context.Background(), req, resp, domain.CATEGORY_MEDICATION)
	require.NoError(t, err)
	require.Len(t, sources, 3)

	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		ids = append(ids, src.ID)
	}
	assert.ElementsMatch(t, []string{"ev-anticoag-guideline", "ev-febrile-neutropenia", "ev-chemo-consensus"}, ids)
}

func TestCatalogEvidenceGathererNoMatches(t *testing.T) {
	gatherer, err := NewCatalogEvidenceGatherer(16, testLogger())
	require.NoError(t, err)

	resp := &domain.AIResponse{Content: "Drink plenty of water and rest."}
	sources, err := gatherer.GatherEvidence(context.Background(), nil, resp, domain.CATEGORY_GENERAL)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestCatalogEvidenceGathererCachesByExchange(t *testing.T) {
	gatherer, err := NewCatalogEvidenceGatherer(16, testLogger())
	require.NoError(t, err)

	req := &domain.AIRequest{Prompt: "p"}
	resp := &domain.AIResponse{Content: "Methotrexate levels must be monitored."}

	first, err := gatherer.GatherEvidence(context.Background(), req, resp, domain.CATEGORY_MEDICATION)
	require.NoError(t, err)
	second, err := gatherer.GatherEvidence(context.Background(), req, resp, domain.CATEGORY_MEDICATION)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Different category is a different cache entry but the same catalog hit
	other, err := gatherer.GatherEvidence(context.Background(), req, resp, domain.CATEGORY_TREATMENT)
	require.NoError(t, err)
	assert.Equal(t, first, other)
}

func TestCatalogEvidenceGathererHonorsCancellation(t *testing.T) {
	gatherer, err := NewCatalogEvidenceGatherer(16, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = gatherer.GatherEvidence(ctx, nil, &domain.AIResponse{Content: "warfarin"}, domain.CATEGORY_GENERAL)
	assert.ErrorIs(t, err, context.Canceled)
}
