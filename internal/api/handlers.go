package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinical-safety-engine/internal/domain"
)

// safetyCheckRequest is the body of POST /api/v1/safety-check.
type safetyCheckRequest struct {
	ClinicalData domain.ClinicalData `json:"clinical_data" binding:"required"`
}

// drugInteractionsRequest is the body of POST /api/v1/drug-interactions.
type drugInteractionsRequest struct {
	Drugs          []string               `json:"drugs" binding:"required"`
	PatientFactors *domain.PatientFactors `json:"patient_factors,omitempty"`
}

// confidenceRequest is the body of POST /api/v1/confidence.
type confidenceRequest struct {
	Request        domain.AIRequest     `json:"request"`
	Response       domain.AIResponse    `json:"response" binding:"required"`
	Category       domain.QueryCategory `json:"category" binding:"required"`
	ContextualData domain.ClinicalData  `json:"contextual_data,omitempty"`
}

// interactionKeyRequest identifies one interaction pair.
type interactionKeyRequest struct {
	DrugA string `json:"drug_a" binding:"required"`
	DrugB string `json:"drug_b" binding:"required"`
}

func (s *Server) handleSafetyCheck(c *gin.Context) {
	var req safetyCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := s.orchestrator.PerformSafetyCheck(c.Request.Context(), req.ClinicalData)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDrugInteractions(c *gin.Context) {
	var req drugInteractionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	analysis, err := s.analyzer.AnalyzeInteractions(c.Request.Context(), req.Drugs, req.PatientFactors)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) handleConfidence(c *gin.Context) {
	var req confidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := s.scorer.CalculateConfidence(c.Request.Context(), &req.Request, &req.Response, req.Category, req.ContextualData)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": s.rules.Snapshot()})
}

func (s *Server) handleAddRule(c *gin.Context) {
	var rule domain.ClinicalRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule: " + err.Error()})
		return
	}

	if err := s.rules.Add(rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.persistRule(c, rule); err != nil {
		// Keep registry and store in sync: an unpersisted rule must not
		// stay active
		s.rules.Remove(rule.ID)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": rule.ID})
}

func (s *Server) handleUpdateRule(c *gin.Context) {
	var rule domain.ClinicalRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule: " + err.Error()})
		return
	}
	rule.ID = c.Param("id")

	previous, err := s.rules.Get(rule.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := s.rules.Update(rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.persistRule(c, rule); err != nil {
		s.rules.Update(previous)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": rule.ID})
}

func (s *Server) handleListInteractions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"interactions": s.interactions.Snapshot()})
}

func (s *Server) handleAddInteraction(c *gin.Context) {
	var record domain.DrugInteractionRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid interaction record: " + err.Error()})
		return
	}

	previous, existed := s.interactions.Lookup(record.DrugA, record.DrugB)
	if err := s.interactions.Add(record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.store != nil {
		if err := s.store.SaveInteraction(c.Request.Context(), record); err != nil {
			s.logger.WithError(err).Error("Failed to persist interaction record")
			if existed {
				s.interactions.Add(previous)
			} else {
				s.interactions.Remove(record.DrugA, record.DrugB)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist interaction"})
			return
		}
	}
	c.JSON(http.StatusCreated, gin.H{"pair_key": record.PairKey()})
}

func (s *Server) handleRemoveInteraction(c *gin.Context) {
	var req interactionKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	removed, found := s.interactions.Lookup(req.DrugA, req.DrugB)
	if err := s.interactions.Remove(req.DrugA, req.DrugB); err != nil {
		s.writeError(c, err)
		return
	}
	if s.store != nil && found {
		if err := s.store.DeleteInteraction(c.Request.Context(), req.DrugA, req.DrugB); err != nil {
			s.logger.WithError(err).Error("Failed to delete persisted interaction record")
			s.interactions.Add(removed)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete interaction"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"pair_key": domain.InteractionPairKey(req.DrugA, req.DrugB)})
}

// persistRule saves the rule to the registry store. Writes the HTTP error
// response itself and returns non-nil when persistence failed.
func (s *Server) persistRule(c *gin.Context, rule domain.ClinicalRule) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.SaveRule(c.Request.Context(), rule); err != nil {
		s.logger.WithError(err).Error("Failed to persist clinical rule")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist rule"})
		return err
	}
	return nil
}

// writeError maps engine errors onto HTTP status codes: validation problems
// are client errors, collaborator failures are bad gateways.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case domain.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case domain.IsDependencyError(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.logger.WithError(err).Error("Unhandled evaluation error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
