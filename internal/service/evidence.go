package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/clinical-safety-engine/internal/domain"
)

// catalogEntry binds a clinical keyword to the evidence source returned when
// a response discusses that topic.
type catalogEntry struct {
	keyword string
	source  domain.EvidenceSource
}

// Built-in evidence catalog. Matching is case-insensitive against the
// response text; each matched entry contributes one source.
var evidenceCatalog = []catalogEntry{
	{
		keyword: "warfarin",
		source: domain.EvidenceSource{
			ID:         "ev-anticoag-guideline",
			Type:       domain.EVIDENCE_GUIDELINE,
			Title:      "Anticoagulation management guideline",
			Confidence: 0.95,
			Relevance:  0.90,
		},
	},
	{
		keyword: "neutropenia",
		source: domain.EvidenceSource{
			ID:         "ev-febrile-neutropenia",
			Type:       domain.EVIDENCE_GUIDELINE,
			Title:      "Febrile neutropenia management guideline",
			Confidence: 0.95,
			Relevance:  0.92,
		},
	},
	{
		keyword: "trastuzumab",
		source: domain.EvidenceSource{
			ID:         "ev-her2-therapy",
			Type:       domain.EVIDENCE_GUIDELINE,
			Title:      "HER2-targeted therapy cardiac monitoring guidance",
			Confidence: 0.92,
			Relevance:  0.88,
		},
	},
	{
		keyword: "methotrexate",
		source: domain.EvidenceSource{
			ID:         "ev-mtx-toxicity",
			Type:       domain.EVIDENCE_LITERATURE,
			Title:      "High-dose methotrexate toxicity review",
			Confidence: 0.85,
			Relevance:  0.85,
		},
	},
	{
		keyword: "anthracycline",
		source: domain.EvidenceSource{
			ID:         "ev-anthracycline-cardiotoxicity",
			Type:       domain.EVIDENCE_LITERATURE,
			Title:      "Anthracycline cardiotoxicity cohort analysis",
			Confidence: 0.85,
			Relevance:  0.85,
		},
	},
	{
		keyword: "chemotherapy",
		source: domain.EvidenceSource{
			ID:         "ev-chemo-consensus",
			Type:       domain.EVIDENCE_CONSENSUS,
			Title:      "Systemic therapy expert consensus statement",
			Confidence: 0.80,
			Relevance:  0.75,
		},
	},
	{
		keyword: "immunotherapy",
		source: domain.EvidenceSource{
			ID:         "ev-immunotherapy-consensus",
			Type:       domain.EVIDENCE_CONSENSUS,
			Title:      "Immune checkpoint inhibitor toxicity consensus",
			Confidence: 0.82,
			Relevance:  0.78,
		},
	},
}

// CatalogEvidenceGatherer matches response text against the built-in evidence
// catalog, with an LRU cache over the (request, response, category) triple so
// that repeated scoring of the same exchange skips the scan.
type CatalogEvidenceGatherer struct {
	cache  *lru.Cache[string, []domain.EvidenceSource]
	logger *logrus.Logger
}

// NewCatalogEvidenceGatherer creates a gatherer with the given cache size.
func NewCatalogEvidenceGatherer(cacheSize int, logger *logrus.Logger) (*CatalogEvidenceGatherer, error) {
	cache, err := lru.New[string, []domain.EvidenceSource](cacheSize)
	if err != nil {
		return nil, err
	}
	return &CatalogEvidenceGatherer{cache: cache, logger: logger}, nil
}

// GatherEvidence returns the catalog sources whose keywords appear in the
// response text.
func (g *CatalogEvidenceGatherer) GatherEvidence(ctx context.Context, req *domain.AIRequest, resp *domain.AIResponse, category domain.QueryCategory) ([]domain.EvidenceSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := gatherKey(req, resp, category)
	if cached, ok := g.cache.Get(key); ok {
		return cached, nil
	}

	content := strings.ToLower(resp.Content)
	var sources []domain.EvidenceSource
	for _, entry := range evidenceCatalog {
		if strings.Contains(content, entry.keyword) {
			sources = append(sources, entry.source)
		}
	}

	g.cache.Add(key, sources)
	g.logger.WithFields(logrus.Fields{
		"category": category.String(),
		"sources":  len(sources),
	}).Debug("Evidence gathered")

	return sources, nil
}

// gatherKey derives a stable cache key from the exchange.
func gatherKey(req *domain.AIRequest, resp *domain.AIResponse, category domain.QueryCategory) string {
	h := sha256.New()
	if req != nil {
		h.Write([]byte(req.Prompt))
	}
	h.Write([]byte{0})
	h.Write([]byte(resp.Content))
	h.Write([]byte{0})
	h.Write([]byte(category))
	return hex.EncodeToString(h.Sum(nil))
}
