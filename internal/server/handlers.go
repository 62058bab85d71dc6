package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/product-normalizer/internal/cluster"
	"github.com/Veraticus/product-normalizer/internal/common"
	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/normalize"
	"github.com/Veraticus/product-normalizer/internal/reftable"
)

type matchRequest struct {
	Threshold   *float64 `json:"threshold"`
	Description string   `json:"description"`
}

type itemPayload struct {
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Description string          `json:"description"`
}

type normalizeRequest struct {
	Threshold *float64      `json:"threshold"`
	Items     []itemPayload `json:"items" binding:"required"`
	Learn     bool          `json:"learn"`
}

type normalizedPayload struct {
	model.MatchResult
	Description string `json:"description"`
	Row         int    `json:"row"`
}

type statsPayload struct {
	Counts           map[model.MatchMethod]int `json:"counts"`
	Total            int                       `json:"total"`
	UniqueOriginal   int                       `json:"unique_original"`
	UniqueNormalized int                       `json:"unique_normalized"`
	MeanScore        float64                   `json:"mean_score"`
}

type normalizeResponse struct {
	LearnError string              `json:"learn_error,omitempty"`
	Items      []normalizedPayload `json:"items"`
	Stats      statsPayload        `json:"stats"`
	Learned    int                 `json:"learned"`
	Degraded   bool                `json:"degraded"`
}

type clusterRequest struct {
	Descriptions []string `json:"descriptions" binding:"required"`
	Thresholds   []int    `json:"thresholds"`
}

type familyPayload struct {
	Master  string   `json:"master"`
	Members []string `json:"members"`
}

type levelPayload struct {
	Families  []familyPayload `json:"families"`
	Level     int             `json:"level"`
	Threshold int             `json:"threshold"`
}

type assignmentPayload struct {
	Description string   `json:"description"`
	Families    []string `json:"families"`
}

type clusterResponse struct {
	Levels      []levelPayload      `json:"levels"`
	Assignments []assignmentPayload `json:"assignments"`
}

type learnRequest struct {
	Threshold    *float64 `json:"threshold"`
	Descriptions []string `json:"descriptions" binding:"required"`
}

type referencePayload struct {
	Variant string `json:"variant"`
	Base    string `json:"base"`
}

// table returns the current reference table. A missing table yields nil
// without error so callers can degrade to unmatched output.
func (s *Server) table(ctx context.Context) (*reftable.Table, error) {
	t, err := s.cache.Get(ctx)
	if err != nil {
		if errors.Is(err, common.ErrMissingResource) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func (s *Server) handleHealth(c *gin.Context) {
	t, err := s.table(c.Request.Context())
	reference := gin.H{
		"location": s.cache.Store().Location(),
		"loaded":   err == nil && t != nil,
		"entries":  t.Len(),
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"reference": reference,
	})
}

func (s *Server) handleMatch(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	t, err := s.table(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	result := s.matcher.Match(req.Description, t, orDefault(req.Threshold, s.config.Threshold))
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleNormalize(c *gin.Context) {
	var req normalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Learn && s.learner == nil {
		sendError(c, http.StatusForbidden, "learning is disabled")
		return
	}

	ctx := c.Request.Context()
	t, err := s.table(ctx)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]model.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = model.LineItem{
			Row:         i + 1,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
			Salvageable: true,
		}
	}

	normalized, stats := s.matcher.NormalizeDataset(items, t, orDefault(req.Threshold, s.config.Threshold))
	resp := normalizeResponse{
		Items:    make([]normalizedPayload, len(normalized)),
		Stats:    toStatsPayload(stats),
		Degraded: t == nil,
	}
	for i, n := range normalized {
		resp.Items[i] = normalizedPayload{MatchResult: n.Result, Description: n.Description, Row: n.Row}
	}

	if req.Learn && t != nil {
		learned, err := s.learner.Learn(ctx, normalized, s.config.LearnThreshold)
		resp.Learned = learned
		if err != nil {
			if !errors.Is(err, common.ErrPersistence) {
				sendError(c, http.StatusInternalServerError, err.Error())
				return
			}
			resp.LearnError = err.Error()
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCluster(c *gin.Context) {
	var req clusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	clusterer := s.clusterer
	if len(req.Thresholds) > 0 {
		custom, err := cluster.New(model.ThresholdSet(req.Thresholds), s.config.Scorer)
		if err != nil {
			sendError(c, http.StatusBadRequest, err.Error())
			return
		}
		clusterer = custom
	}

	result := clusterer.Cluster(req.Descriptions)

	resp := clusterResponse{
		Levels:      make([]levelPayload, len(result.Levels)),
		Assignments: make([]assignmentPayload, len(result.Assignments)),
	}
	for i, level := range result.Levels {
		lp := levelPayload{Level: i + 1, Threshold: level.Threshold}
		for _, master := range level.Masters {
			lp.Families = append(lp.Families, familyPayload{Master: master, Members: level.Members(master)})
		}
		resp.Levels[i] = lp
	}
	for i, a := range result.Assignments {
		resp.Assignments[i] = assignmentPayload{Description: a.Description, Families: a.Masters}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLearn(c *gin.Context) {
	if s.learner == nil {
		sendError(c, http.StatusForbidden, "learning is disabled")
		return
	}

	var req learnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	t, err := s.table(ctx)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if t == nil {
		sendError(c, http.StatusServiceUnavailable, "reference table unavailable")
		return
	}

	items := make([]model.LineItem, len(req.Descriptions))
	for i, d := range req.Descriptions {
		items[i] = model.LineItem{Row: i + 1, Description: d, Salvageable: true}
	}
	normalized, _ := s.matcher.NormalizeDataset(items, t, s.config.Threshold)

	learned, err := s.learner.Learn(ctx, normalized, orDefault(req.Threshold, s.config.LearnThreshold))
	if err != nil && !errors.Is(err, common.ErrPersistence) {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	resp := gin.H{"learned": learned, "persisted": err == nil}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleReference(c *gin.Context) {
	t, err := s.table(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if t == nil {
		sendError(c, http.StatusServiceUnavailable, "reference table unavailable")
		return
	}

	entries := t.Entries()
	out := make([]referencePayload, len(entries))
	for i, e := range entries {
		out[i] = referencePayload{Variant: e.Variant, Base: e.Base}
	}
	c.JSON(http.StatusOK, gin.H{
		"location":     s.cache.Store().Location(),
		"count":        len(out),
		"unique_bases": t.UniqueBases(),
		"entries":      out,
	})
}

func toStatsPayload(s normalize.Stats) statsPayload {
	return statsPayload{
		Counts:           s.Counts,
		Total:            s.Total,
		UniqueOriginal:   s.UniqueOriginal,
		UniqueNormalized: s.UniqueNormalized,
		MeanScore:        s.MeanScore,
	}
}
