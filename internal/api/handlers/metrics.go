package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sunil-1234/Virtual-call-assistant/pkg/metrics"
)

func (h *Handler) GetMetrics(c *gin.Context) {
	metricsData := metrics.GetMetrics()
	metricsData["active_calls"] = h.sessions.Len()
	c.JSON(http.StatusOK, metricsData)
}

func (h *Handler) GetPrometheusMetrics(c *gin.Context) {
	promMetrics := metrics.GetPrometheusMetrics()
	c.Data(http.StatusOK, "text/plain; version=0.0.4", []byte(promMetrics))
}
