package models

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
)

type Project struct {
	Base
	Name   string        `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Status ProjectStatus `gorm:"size:20;not null;default:active" json:"status"`
}

type NewProject struct {
	Name   string        `json:"name" validate:"required,max=255"`
	Status ProjectStatus `json:"status"`
}

func (input *NewProject) validate(ctx context.Context, s *Store, id string) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Status == "" {
		input.Status = ProjectStatusActive
	}
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.Status.IsValid() {
		return utils.NewFieldError("status", "oneof", "invalid project status")
	}
	return validateUnique[Project](ctx, s, "name", input.Name, id, "project name already exists")
}

func (s *Store) CreateProject(ctx context.Context, input *NewProject) (*Project, error) {
	if err := input.validate(ctx, s, ""); err != nil {
		return nil, err
	}
	project := Project{
		Name:   input.Name,
		Status: input.Status,
	}
	if err := s.conn(ctx).Create(&project).Error; err != nil {
		return nil, translateWriteError(err, "name", "project name already exists")
	}
	return &project, nil
}

func (s *Store) UpdateProject(ctx context.Context, id string, input *NewProject) (*Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, s, id); err != nil {
		return nil, err
	}
	project.Name = input.Name
	project.Status = input.Status
	if err := s.conn(ctx).Save(project).Error; err != nil {
		return nil, translateWriteError(err, "name", "project name already exists")
	}
	return project, nil
}

// DeleteProject refuses while the project still owns transactions.
func (s *Store) DeleteProject(ctx context.Context, id string) (*Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	inUse, err := s.projectHasTransactions(ctx, id)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, utils.NewConflictError("id", "project still has transactions")
	}
	err = s.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.DeleteProjectSummaries(ctx, id); err != nil {
			return err
		}
		return s.conn(ctx).Delete(project).Error
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *Store) projectHasTransactions(ctx context.Context, id string) (bool, error) {
	checks := []func() (int64, error){
		func() (int64, error) { return resourceCountWhere[FundTransfer](ctx, s, "project_id = ?", id) },
		func() (int64, error) {
			return resourceCountWhere[ProjectFundTransfer](ctx, s, "from_project_id = ? OR to_project_id = ?", id, id)
		},
		func() (int64, error) { return resourceCountWhere[WorkerAttendance](ctx, s, "project_id = ?", id) },
		func() (int64, error) { return resourceCountWhere[MaterialPurchase](ctx, s, "project_id = ?", id) },
		func() (int64, error) { return resourceCountWhere[TransportationExpense](ctx, s, "project_id = ?", id) },
		func() (int64, error) { return resourceCountWhere[WorkerTransfer](ctx, s, "project_id = ?", id) },
		func() (int64, error) { return resourceCountWhere[WorkerMiscExpense](ctx, s, "project_id = ?", id) },
		func() (int64, error) { return resourceCountWhere[SupplierPayment](ctx, s, "project_id = ?", id) },
	}
	for _, check := range checks {
		count, err := check()
		if err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	return getResource[Project](ctx, s, "Project", id)
}

func (s *Store) ListProjects(ctx context.Context, status ProjectStatus) ([]*Project, error) {
	var results []*Project
	db := s.conn(ctx).Order("name")
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if err := db.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetProjectsByIds returns the projects that exist among ids, in no particular order.
func (s *Store) GetProjectsByIds(ctx context.Context, ids []string) ([]*Project, error) {
	var results []*Project
	if len(ids) == 0 {
		return results, nil
	}
	if err := s.conn(ctx).Where("id IN ?", utils.UniqueSlice(ids)).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ValidateProjectIds fails with *utils.NotFoundError on the first unknown id.
func (s *Store) ValidateProjectIds(ctx context.Context, ids []string) ([]*Project, error) {
	projects, err := s.GetProjectsByIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		found[p.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, utils.NewNotFoundError("Project", id)
		}
	}
	return projects, nil
}
