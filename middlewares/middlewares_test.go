package middlewares_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/middlewares"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models/modeltest"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCorrelationMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen, _ = utils.GetCorrelationIdFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := serve(r, "/ping", http.Header{"X-Correlation-Id": {"abc-123"}})
	require.Equal(t, "abc-123", seen)
	require.Equal(t, "abc-123", w.Header().Get(middlewares.CorrelationIdHeader))

	w = serve(r, "/ping", nil)
	require.NotEmpty(t, seen)
	require.NotEqual(t, "abc-123", seen)
	require.Equal(t, seen, w.Header().Get(middlewares.CorrelationIdHeader))
}

func TestReadinessMiddleware(t *testing.T) {
	ready := false
	r := gin.New()
	r.Use(middlewares.ReadinessMiddleware(func() bool { return ready }))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/projects", func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, serve(r, "/healthz", nil).Code)
	require.Equal(t, http.StatusServiceUnavailable, serve(r, "/projects", nil).Code)

	ready = true
	require.Equal(t, http.StatusOK, serve(r, "/projects", nil).Code)
}

func TestRateLimiter_PassesThroughWithoutRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.Use(middlewares.NewRateLimiter(client, 1, time.Minute).Middleware())
	r.GET("/projects", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, serve(r, "/projects", nil).Code)
	}
}

func TestLoaders(t *testing.T) {
	store := modeltest.OpenStore(t)
	ctx := context.Background()

	w, err := store.CreateWorker(ctx, &models.NewWorker{Name: "Ahmad"})
	require.NoError(t, err)
	p, err := store.CreateProject(ctx, &models.NewProject{Name: "Tower A"})
	require.NoError(t, err)

	ctx = middlewares.WithLoaders(ctx, middlewares.NewLoaders(store))

	workers, errs := middlewares.GetWorkers(ctx, []string{w.ID, "missing"})
	require.Len(t, workers, 2)
	require.NoError(t, errs[0])
	require.Equal(t, "Ahmad", workers[0].Name)
	var notFound *utils.NotFoundError
	require.True(t, errors.As(errs[1], &notFound))
	require.Equal(t, "missing", notFound.Id)

	projects, errs := middlewares.GetProjects(ctx, []string{"missing", p.ID})
	require.Nil(t, projects[0])
	require.True(t, utils.IsNotFound(errs[0]))
	require.Equal(t, "Tower A", projects[1].Name)
}
