package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"github.com/graph-gophers/dataloader/v7"
)

type projectReader struct {
	store *models.Store
}

func (r *projectReader) getProjects(ctx context.Context, ids []string) []*dataloader.Result[*models.Project] {
	results, err := r.store.GetProjectsByIds(ctx, ids)
	if err != nil {
		return handleError[*models.Project](len(ids), err)
	}
	return generateLoaderResults(results, ids, "Project")
}

func GetProjects(ctx context.Context, ids []string) ([]*models.Project, []error) {
	loaders := For(ctx)
	return loaders.projectLoader.LoadMany(ctx, ids)()
}
