package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"github.com/graph-gophers/dataloader/v7"
)

type workerReader struct {
	store *models.Store
}

func (r *workerReader) getWorkers(ctx context.Context, ids []string) []*dataloader.Result[*models.Worker] {
	results, err := r.store.GetWorkersByIds(ctx, ids)
	if err != nil {
		return handleError[*models.Worker](len(ids), err)
	}
	return generateLoaderResults(results, ids, "Worker")
}

func GetWorkers(ctx context.Context, ids []string) ([]*models.Worker, []error) {
	loaders := For(ctx)
	return loaders.workerLoader.LoadMany(ctx, ids)()
}
