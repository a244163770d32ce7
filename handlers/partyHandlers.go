package handlers

import (
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models/reports"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/gin-gonic/gin"
)

func (h *Handler) listProjects(c *gin.Context) {
	status := models.ProjectStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		h.respondError(c, utils.NewFieldError("status", "oneof", "invalid project status"))
		return
	}
	withStats := false
	if raw := c.Query("withStats"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondError(c, utils.NewFieldError("withStats", "boolean", "withStats must be true or false"))
			return
		}
		withStats = v
	}
	ctx := c.Request.Context()
	results, err := h.store.ListProjects(ctx, status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !withStats {
		c.JSON(http.StatusOK, results)
		return
	}

	asOf := time.Now().UTC()
	views := make([]projectWithStats, 0, len(results))
	for _, p := range results {
		stats, err := h.store.GetProjectStatistics(ctx, p.ID, asOf)
		if err != nil {
			h.respondError(c, err)
			return
		}
		views = append(views, projectWithStats{Project: p, Stats: stats})
	}
	c.JSON(http.StatusOK, views)
}

type projectWithStats struct {
	*models.Project
	Stats *models.ProjectStatistics `json:"stats"`
}

func (h *Handler) projectStatistics(c *gin.Context) {
	stats, err := h.store.GetProjectStatistics(c.Request.Context(), c.Param("id"), time.Now().UTC())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) listWorkers(c *gin.Context) {
	activeOnly := false
	if raw := c.Query("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondError(c, utils.NewFieldError("active", "boolean", "active must be true or false"))
			return
		}
		activeOnly = v
	}
	results, err := h.store.ListWorkers(c.Request.Context(), activeOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *Handler) workerProjects(c *gin.Context) {
	results, err := h.store.GetWorkerProjects(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *Handler) workerBalance(c *gin.Context) {
	balance, err := h.reports.GetWorkerBalance(c.Request.Context(), c.Param("id"), c.Param("projectId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// workerStatement serves both ?projectId= and ?projectIds=a,b,c.
func (h *Handler) workerStatement(c *gin.Context) {
	q := reports.WorkerStatementQuery{
		WorkerId:   c.Param("id"),
		ProjectIds: reports.ParseProjectIds(c.Query("projectId"), c.Query("projectIds")),
	}
	var err error
	if q.DateFrom, err = optionalDate(c, "dateFrom"); err != nil {
		h.respondError(c, err)
		return
	}
	if q.DateTo, err = optionalDate(c, "dateTo"); err != nil {
		h.respondError(c, err)
		return
	}
	statement, err := h.reports.BuildWorkerStatement(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, statement)
}

func (h *Handler) listSuppliers(c *gin.Context) {
	results, err := h.store.ListSuppliers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *Handler) supplierStatement(c *gin.Context) {
	from, to, err := optionalRange(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	statement, err := h.reports.BuildSupplierStatement(c.Request.Context(), reports.SupplierStatementQuery{
		SupplierId: c.Param("id"),
		ProjectId:  c.Query("projectId"),
		DateFrom:   from,
		DateTo:     to,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, statement)
}

func (h *Handler) listMaterials(c *gin.Context) {
	results, err := h.store.ListMaterials(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
