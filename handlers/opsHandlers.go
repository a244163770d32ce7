package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/sitebooks_backend/workflow"
	"github.com/gin-gonic/gin"
)

func (h *Handler) queueStats(c *gin.Context) {
	if h.queue == nil {
		c.JSON(http.StatusOK, workflow.QueueStats{})
		return
	}
	c.JSON(http.StatusOK, h.queue.Stats())
}

func (h *Handler) flushReportCache(c *gin.Context) {
	if err := h.reportCache.Flush(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
