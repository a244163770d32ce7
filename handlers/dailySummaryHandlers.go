package handlers

import (
	"errors"
	"net/http"
	"path"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models/reports"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"bitbucket.org/mmdatafocus/sitebooks_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func dateParam(c *gin.Context) (models.Date, error) {
	return models.ParseDateField("date", c.Param("date"))
}

func (h *Handler) getDailySummary(c *gin.Context) {
	date, err := dateParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	summary, err := h.store.GetDailySummary(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// reconcileDailySummary recomputes one day synchronously and returns the fresh row.
func (h *Handler) reconcileDailySummary(c *gin.Context) {
	date, err := dateParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	result, err := h.reconciler.Reconcile(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	setStaleHeader(c, result)
	c.JSON(http.StatusOK, result.Summary)
}

func (h *Handler) fixDay(c *gin.Context) {
	date, err := dateParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	result, err := h.reconciler.FixDay(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	setStaleHeader(c, result)
	c.JSON(http.StatusOK, result)
}

// dailyReport shows one project-day: the records behind the summary, the stored
// row and what a reconcile would produce now.
func (h *Handler) dailyReport(c *gin.Context) {
	ctx := c.Request.Context()
	date, err := dateParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	report, err := h.reports.GetDailyExpenseReport(ctx, c.Param("id"), date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	report.WorkerNames = workerNames(ctx, report.WorkerIds())
	report.ProjectNames = projectNames(ctx, report.CounterpartProjectIds())
	c.JSON(http.StatusOK, report)
}

func setStaleHeader(c *gin.Context, result *workflow.ReconcileResult) {
	if stale := result.StaleLaterSummaries(); stale > 0 {
		c.Header(StaleLaterSummariesHeader, strconv.FormatInt(stale, 10))
	}
}

func (h *Handler) previousBalance(c *gin.Context) {
	ctx := c.Request.Context()
	projectId := c.Param("id")
	date, err := dateParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if _, err := h.store.GetProject(ctx, projectId); err != nil {
		h.respondError(c, err)
		return
	}
	balance, err := h.store.GetPreviousBalance(ctx, projectId, date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project_id":       projectId,
		"date":             date,
		"previous_balance": balance,
	})
}

func (h *Handler) recalculateBalances(c *gin.Context) {
	result, err := h.recalculator.RecalculateAll(c.Request.Context(), c.Param("id"))
	if err != nil {
		var failed *workflow.RecalculationError
		if errors.As(err, &failed) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success":     false,
				"error":       failed.Error(),
				"failed_date": failed.Date,
			})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *Handler) listDailySummaries(c *gin.Context) {
	from, to, err := optionalRange(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	report, err := h.reports.GetDailySummaryReport(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// exportDailySummaries streams an xlsx, or with ?archive=true stores it in the
// export bucket and returns its location.
func (h *Handler) exportDailySummaries(c *gin.Context) {
	ctx := c.Request.Context()
	from, to, err := optionalRange(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	report, err := h.reports.GetDailySummaryReport(ctx, c.Param("id"), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	data, err := reports.ExportDailySummaryReport(report)
	if err != nil {
		h.respondError(c, err)
		return
	}
	fileName := reports.DailySummaryFileName(report)

	archive, _ := strconv.ParseBool(c.Query("archive"))
	if !archive {
		c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
		c.Data(http.StatusOK, utils.XlsxContentType, data)
		return
	}

	if h.uploader == nil || h.uploader.Bucket == "" {
		h.respondError(c, utils.NewFieldError("archive", "unavailable", "export archiving is not configured"))
		return
	}
	objectName := path.Join("exports", report.Project.ID, time.Now().UTC().Format("20060102T150405Z")+"_"+fileName)
	location, err := h.uploader.Upload(ctx, objectName, data, utils.XlsxContentType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	h.logger.WithFields(logrus.Fields{
		"field":          "exportDailySummaries",
		"project_id":     report.Project.ID,
		"object":         objectName,
		"bytes":          len(data),
		"correlation_id": cid,
	}).Info("archived daily summary export")
	c.JSON(http.StatusCreated, gin.H{
		"location":  location,
		"file_name": fileName,
		"days":      len(report.Summaries),
	})
}
