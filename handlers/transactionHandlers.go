package handlers

import (
	"context"
	"net/http"

	"bitbucket.org/mmdatafocus/sitebooks_backend/middlewares"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/gin-gonic/gin"
)

// Every write below returns as soon as the row is committed; the affected
// daily summaries are reconciled in the background.
func (h *Handler) registerTransactions(r gin.IRouter) {
	s := h.store

	g := r.Group("/fund-transfers")
	g.GET("", h.listFundTransfers)
	g.POST("", createHandler(h, s.CreateFundTransfer))
	g.GET("/:id", getHandler(h, s.GetFundTransfer))
	g.PUT("/:id", updateHandler(h, s.UpdateFundTransfer))
	g.DELETE("/:id", deleteHandler(h, s.DeleteFundTransfer))

	g = r.Group("/project-fund-transfers")
	g.GET("", h.listProjectFundTransfers)
	g.POST("", createHandler(h, s.CreateProjectFundTransfer))
	g.GET("/:id", getHandler(h, s.GetProjectFundTransfer))
	g.PUT("/:id", updateHandler(h, s.UpdateProjectFundTransfer))
	g.DELETE("/:id", deleteHandler(h, s.DeleteProjectFundTransfer))

	g = r.Group("/worker-attendance")
	g.GET("", h.listWorkerAttendance)
	g.POST("", createHandler(h, s.CreateWorkerAttendance))
	g.GET("/:id", getHandler(h, s.GetWorkerAttendance))
	g.PUT("/:id", updateHandler(h, s.UpdateWorkerAttendance))
	g.DELETE("/:id", deleteHandler(h, s.DeleteWorkerAttendance))

	g = r.Group("/material-purchases")
	g.GET("", h.listMaterialPurchases)
	g.POST("", createHandler(h, s.CreateMaterialPurchase))
	g.GET("/:id", getHandler(h, s.GetMaterialPurchase))
	g.PUT("/:id", updateHandler(h, s.UpdateMaterialPurchase))
	g.DELETE("/:id", deleteHandler(h, s.DeleteMaterialPurchase))

	g = r.Group("/transportation-expenses")
	g.GET("", h.listTransportationExpenses)
	g.POST("", createHandler(h, s.CreateTransportationExpense))
	g.GET("/:id", getHandler(h, s.GetTransportationExpense))
	g.PUT("/:id", updateHandler(h, s.UpdateTransportationExpense))
	g.DELETE("/:id", deleteHandler(h, s.DeleteTransportationExpense))

	g = r.Group("/worker-transfers")
	g.GET("", h.listWorkerTransfers)
	g.POST("", createHandler(h, s.CreateWorkerTransfer))
	g.GET("/:id", getHandler(h, s.GetWorkerTransfer))
	g.PUT("/:id", updateHandler(h, s.UpdateWorkerTransfer))
	g.DELETE("/:id", deleteHandler(h, s.DeleteWorkerTransfer))

	g = r.Group("/worker-misc-expenses")
	g.GET("", h.listWorkerMiscExpenses)
	g.POST("", createHandler(h, s.CreateWorkerMiscExpense))
	g.GET("/:id", getHandler(h, s.GetWorkerMiscExpense))
	g.PUT("/:id", updateHandler(h, s.UpdateWorkerMiscExpense))
	g.DELETE("/:id", deleteHandler(h, s.DeleteWorkerMiscExpense))

	g = r.Group("/supplier-payments")
	g.GET("", h.listSupplierPayments)
	g.POST("", createHandler(h, s.CreateSupplierPayment))
	g.GET("/:id", getHandler(h, s.GetSupplierPayment))
	g.PUT("/:id", updateHandler(h, s.UpdateSupplierPayment))
	g.DELETE("/:id", deleteHandler(h, s.DeleteSupplierPayment))
}

type attendanceView struct {
	*models.WorkerAttendance
	WorkerName string `json:"worker_name"`
}

type workerTransferView struct {
	*models.WorkerTransfer
	WorkerName string `json:"worker_name"`
}

type projectFundTransferView struct {
	*models.ProjectFundTransfer
	FromProjectName string `json:"from_project_name"`
	ToProjectName   string `json:"to_project_name"`
}

// workerNames resolves names through the request's worker loader in one batch.
func workerNames(ctx context.Context, ids []string) map[string]string {
	ids = utils.UniqueSlice(ids)
	workers, _ := middlewares.GetWorkers(ctx, ids)
	names := make(map[string]string, len(ids))
	for i, w := range workers {
		if w != nil {
			names[ids[i]] = w.Name
		}
	}
	return names
}

func projectNames(ctx context.Context, ids []string) map[string]string {
	ids = utils.UniqueSlice(ids)
	projects, _ := middlewares.GetProjects(ctx, ids)
	names := make(map[string]string, len(ids))
	for i, p := range projects {
		if p != nil {
			names[ids[i]] = p.Name
		}
	}
	return names
}

// projectDayFilter reads the required ?projectId and the optional ?date.
func projectDayFilter(c *gin.Context) (string, models.Date, error) {
	projectId := c.Query("projectId")
	if projectId == "" {
		return "", "", utils.NewFieldError("projectId", "required", "projectId is required")
	}
	date, err := optionalDate(c, "date")
	if err != nil {
		return "", "", err
	}
	return projectId, date, nil
}

func (h *Handler) listFundTransfers(c *gin.Context) {
	projectId, date, err := projectDayFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	results, err := h.store.ListFundTransfers(c.Request.Context(), projectId, date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *Handler) listProjectFundTransfers(c *gin.Context) {
	ctx := c.Request.Context()
	date, err := optionalDate(c, "date")
	if err != nil {
		h.respondError(c, err)
		return
	}
	results, err := h.store.ListProjectFundTransfers(ctx, c.Query("projectId"), date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ids := make([]string, 0, len(results)*2)
	for _, t := range results {
		ids = append(ids, t.FromProjectId, t.ToProjectId)
	}
	names := projectNames(ctx, ids)
	views := make([]projectFundTransferView, 0, len(results))
	for _, t := range results {
		views = append(views, projectFundTransferView{
			ProjectFundTransfer: t,
			FromProjectName:     names[t.FromProjectId],
			ToProjectName:       names[t.ToProjectId],
		})
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) listWorkerAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	projectId, date, err := projectDayFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	results, err := h.store.ListWorkerAttendance(ctx, projectId, date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ids := make([]string, 0, len(results))
	for _, a := range results {
		ids = append(ids, a.WorkerId)
	}
	names := workerNames(ctx, ids)
	views := make([]attendanceView, 0, len(results))
	for _, a := range results {
		views = append(views, attendanceView{WorkerAttendance: a, WorkerName: names[a.WorkerId]})
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) listMaterialPurchases(c *gin.Context) {
	projectId := c.Query("projectId")
	if projectId == "" {
		h.respondError(c, utils.NewFieldError("projectId", "required", "projectId is required"))
		return
	}
	from, to, err := optionalRange(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	results, err := h.store.ListMaterialPurchases(c.Request.Context(), projectId, from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *Handler) listTransportationExpenses(c *gin.Context) {
	projectId, date, err := projectDayFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	results, err := h.store.ListTransportationExpenses(c.Request.Context(), projectId, date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *Handler) listWorkerTransfers(c *gin.Context) {
	ctx := c.Request.Context()
	projectId, workerId := c.Query("projectId"), c.Query("workerId")
	if projectId == "" && workerId == "" {
		h.respondError(c, utils.NewFieldError("projectId", "required_without", "projectId or workerId is required"))
		return
	}
	date, err := optionalDate(c, "date")
	if err != nil {
		h.respondError(c, err)
		return
	}
	results, err := h.store.ListWorkerTransfers(ctx, projectId, workerId, date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ids := make([]string, 0, len(results))
	for _, t := range results {
		ids = append(ids, t.WorkerId)
	}
	names := workerNames(ctx, ids)
	views := make([]workerTransferView, 0, len(results))
	for _, t := range results {
		views = append(views, workerTransferView{WorkerTransfer: t, WorkerName: names[t.WorkerId]})
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) listWorkerMiscExpenses(c *gin.Context) {
	projectId, date, err := projectDayFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	results, err := h.store.ListWorkerMiscExpenses(c.Request.Context(), projectId, date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *Handler) listSupplierPayments(c *gin.Context) {
	supplierId := c.Query("supplierId")
	if supplierId == "" {
		h.respondError(c, utils.NewFieldError("supplierId", "required", "supplierId is required"))
		return
	}
	from, to, err := optionalRange(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	results, err := h.store.ListSupplierPayments(c.Request.Context(), supplierId, c.Query("projectId"), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
