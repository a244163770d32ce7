package middlewares

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders batch the id lookups a single request makes while rendering lists.
type Loaders struct {
	workerLoader  *dataloader.Loader[string, *models.Worker]
	projectLoader *dataloader.Loader[string, *models.Project]
}

// NewLoaders returns request-scoped loaders; never share them across requests.
func NewLoaders(store *models.Store) *Loaders {
	workerReader := &workerReader{store: store}
	projectReader := &projectReader{store: store}

	return &Loaders{
		workerLoader:  dataloader.NewBatchedLoader(workerReader.getWorkers, dataloader.WithWait[string, *models.Worker](time.Millisecond)),
		projectLoader: dataloader.NewBatchedLoader(projectReader.getProjects, dataloader.WithWait[string, *models.Project](time.Millisecond)),
	}
}

func LoaderMiddleware(store *models.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(store)
		ctx := WithLoaders(c.Request.Context(), loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

type identified interface {
	GetId() string
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// turns results from db into dataloader results, in the order of ids.
// ids with no row get a *utils.NotFoundError.
func generateLoaderResults[T identified](results []T, ids []string, resource string) []*dataloader.Result[T] {
	resultMap := make(map[string]T, len(results))
	for _, result := range results {
		resultMap[result.GetId()] = result
	}

	loaderResults := make([]*dataloader.Result[T], 0, len(ids))
	for _, id := range ids {
		data, ok := resultMap[id]
		if !ok {
			loaderResults = append(loaderResults, &dataloader.Result[T]{Error: utils.NewNotFoundError(resource, id)})
			continue
		}
		loaderResults = append(loaderResults, &dataloader.Result[T]{Data: data})
	}
	return loaderResults
}
