package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sunil-1234/Virtual-call-assistant/pkg/errors"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/metrics"
)

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	K     int    `json:"k"`
}

// SearchKnowledge runs a retrieval query against the knowledge index. Used
// by operators to inspect what the agent would ground a reply on.
func (h *Handler) SearchKnowledge(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}
	if req.K <= 0 {
		req.K = h.cfg.RetrievalK
	}

	start := time.Now()
	passages, err := h.index.Retrieve(c.Request.Context(), req.Query, req.K)
	metrics.RecordServiceCall("retrieval", err == nil, time.Since(start))
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":    req.Query,
		"passages": passages,
		"count":    len(passages),
	})
}
