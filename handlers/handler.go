// Package handlers exposes the ledger over HTTP with gin.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"bitbucket.org/mmdatafocus/sitebooks_backend/config"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models/reports"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"bitbucket.org/mmdatafocus/sitebooks_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const StaleLaterSummariesHeader = "X-Stale-Later-Summaries"

type Handler struct {
	store        *models.Store
	reconciler   *workflow.Reconciler
	recalculator *workflow.BalanceRecalculator
	queue        *workflow.ReconcileQueue
	reports      *reports.Builder
	reportCache  *reports.ReportCache
	uploader     *utils.GCSUploader
	logger       *logrus.Logger
}

// Options wires the handler. Queue, ReportCache and Uploader may be nil.
type Options struct {
	Store       *models.Store
	Reconciler  *workflow.Reconciler
	Queue       *workflow.ReconcileQueue
	Reports     *reports.Builder
	ReportCache *reports.ReportCache
	Uploader    *utils.GCSUploader
	Logger      *logrus.Logger
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	builder := opts.Reports
	if builder == nil {
		builder = reports.NewBuilder(opts.Store, opts.ReportCache, logger)
	}
	return &Handler{
		store:        opts.Store,
		reconciler:   opts.Reconciler,
		recalculator: workflow.NewBalanceRecalculator(opts.Reconciler),
		queue:        opts.Queue,
		reports:      builder,
		reportCache:  opts.ReportCache,
		uploader:     opts.Uploader,
		logger:       logger,
	}
}

// Register mounts every route on r. r must already run middlewares.LoaderMiddleware.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	projects := r.Group("/projects")
	projects.GET("", h.listProjects)
	projects.POST("", createHandler(h, h.store.CreateProject))
	projects.GET("/:id", getHandler(h, h.store.GetProject))
	projects.PUT("/:id", updateHandler(h, h.store.UpdateProject))
	projects.DELETE("/:id", deleteHandler(h, h.store.DeleteProject))
	projects.GET("/:id/statistics", h.projectStatistics)
	projects.GET("/:id/daily-summary/:date", h.getDailySummary)
	projects.PUT("/:id/daily-summary/:date", h.reconcileDailySummary)
	projects.GET("/:id/previous-balance/:date", h.previousBalance)
	projects.GET("/:id/daily-report/:date", h.dailyReport)
	projects.POST("/:id/fix-day/:date", h.fixDay)
	projects.POST("/:id/recalculate-balances", h.recalculateBalances)
	projects.GET("/:id/daily-summaries", h.listDailySummaries)
	projects.GET("/:id/daily-summaries/export", h.exportDailySummaries)

	workers := r.Group("/workers")
	workers.GET("", h.listWorkers)
	workers.POST("", createHandler(h, h.store.CreateWorker))
	workers.GET("/:id", getHandler(h, h.store.GetWorker))
	workers.PUT("/:id", updateHandler(h, h.store.UpdateWorker))
	workers.DELETE("/:id", deleteHandler(h, h.store.DeleteWorker))
	workers.GET("/:id/projects", h.workerProjects)
	workers.GET("/:id/balance/:projectId", h.workerBalance)
	workers.GET("/:id/account-statement", h.workerStatement)

	suppliers := r.Group("/suppliers")
	suppliers.GET("", h.listSuppliers)
	suppliers.POST("", createHandler(h, h.store.CreateSupplier))
	suppliers.GET("/:id", getHandler(h, h.store.GetSupplier))
	suppliers.PUT("/:id", updateHandler(h, h.store.UpdateSupplier))
	suppliers.DELETE("/:id", deleteHandler(h, h.store.DeleteSupplier))
	suppliers.GET("/:id/account-statement", h.supplierStatement)

	materials := r.Group("/materials")
	materials.GET("", h.listMaterials)
	materials.POST("", createHandler(h, h.store.CreateMaterial))

	h.registerTransactions(r)

	ops := r.Group("/internal/ops")
	ops.GET("/reconcile-queue", h.queueStats)
	ops.DELETE("/report-cache", h.flushReportCache)
}

// NotFound answers unknown routes.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// respondError maps domain errors to statuses. Anything unrecognised is a 500
// and is logged; the body never carries internal error text.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		validation *utils.ValidationError
		notFound   *utils.NotFoundError
		conflict   *utils.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		body := gin.H{"error": validation.Message}
		if len(validation.Fields) > 0 {
			body["fields"] = validation.Fields
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &conflict):
		body := gin.H{"error": conflict.Message}
		if conflict.Field != "" {
			body["fields"] = map[string]string{conflict.Field: "unique"}
		}
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(h.logger, "handlers", c.HandlerName(), c.Request.Method+" "+c.FullPath(), map[string]any{
			"correlation_id": cid,
		}, err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *Handler) badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
}

// createHandler binds In from the JSON body and calls create.
func createHandler[T any, In any](h *Handler, create func(context.Context, *In) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input In
		if err := c.ShouldBindJSON(&input); err != nil {
			h.badBody(c, err)
			return
		}
		result, err := create(c.Request.Context(), &input)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func updateHandler[T any, In any](h *Handler, update func(context.Context, string, *In) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input In
		if err := c.ShouldBindJSON(&input); err != nil {
			h.badBody(c, err)
			return
		}
		result, err := update(c.Request.Context(), c.Param("id"), &input)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getHandler[T any](h *Handler, get func(context.Context, string) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := get(c.Request.Context(), c.Param("id"))
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func deleteHandler[T any](h *Handler, remove func(context.Context, string) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := remove(c.Request.Context(), c.Param("id"))
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// optionalDate parses query parameter name; a blank value is the zero Date.
func optionalDate(c *gin.Context, name string) (models.Date, error) {
	raw := c.Query(name)
	if raw == "" {
		return "", nil
	}
	return models.ParseDateField(name, raw)
}

// optionalRange reads dateFrom and dateTo; both are optional.
func optionalRange(c *gin.Context) (models.Date, models.Date, error) {
	from, err := optionalDate(c, "dateFrom")
	if err != nil {
		return "", "", err
	}
	to, err := optionalDate(c, "dateTo")
	if err != nil {
		return "", "", err
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return "", "", utils.NewFieldError("dateFrom", "ltefield", "dateFrom must not be after dateTo")
	}
	return from, to, nil
}
