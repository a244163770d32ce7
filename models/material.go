package models

import (
	"context"
	"errors"
	"strings"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"gorm.io/gorm"
)

// Material is a catalogue entry, unique per (name, unit).
type Material struct {
	Base
	Name     string `gorm:"size:255;not null;uniqueIndex:idx_material_name_unit,priority:1" json:"name"`
	Unit     string `gorm:"size:50;not null;uniqueIndex:idx_material_name_unit,priority:2" json:"unit"`
	Category string `gorm:"size:100" json:"category"`
}

type NewMaterial struct {
	Name     string `json:"name" validate:"required,max=255"`
	Unit     string `json:"unit" validate:"required,max=50"`
	Category string `json:"category" validate:"max=100"`
}

func (input *NewMaterial) normalize() {
	input.Name = strings.TrimSpace(input.Name)
	input.Unit = strings.TrimSpace(input.Unit)
	input.Category = strings.TrimSpace(input.Category)
}

func (s *Store) CreateMaterial(ctx context.Context, input *NewMaterial) (*Material, error) {
	input.normalize()
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	existing, err := s.findMaterial(ctx, input.Name, input.Unit)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, utils.NewConflictError("name", "material with this name and unit already exists")
	}
	material := Material{Name: input.Name, Unit: input.Unit, Category: input.Category}
	if err := s.conn(ctx).Create(&material).Error; err != nil {
		return nil, translateWriteError(err, "name", "material with this name and unit already exists")
	}
	return &material, nil
}

func (s *Store) ListMaterials(ctx context.Context) ([]*Material, error) {
	var results []*Material
	if err := s.conn(ctx).Order("name").Order("unit").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) GetMaterial(ctx context.Context, id string) (*Material, error) {
	return getResource[Material](ctx, s, "Material", id)
}

func (s *Store) findMaterial(ctx context.Context, name, unit string) (*Material, error) {
	var material Material
	err := s.conn(ctx).Where("name = ? AND unit = ?", name, unit).Take(&material).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &material, nil
}

// findOrCreateMaterial resolves a purchase's material by (name, unit), creating it on first use.
func (s *Store) findOrCreateMaterial(ctx context.Context, input NewMaterial) (*Material, error) {
	input.normalize()
	if err := utils.ValidateStruct(&input); err != nil {
		return nil, err
	}
	existing, err := s.findMaterial(ctx, input.Name, input.Unit)
	if err != nil || existing != nil {
		return existing, err
	}
	material := Material{Name: input.Name, Unit: input.Unit, Category: input.Category}
	if err := s.conn(ctx).Create(&material).Error; err != nil {
		if isDuplicateKey(err) {
			// lost a race with another purchase naming the same material
			return s.findMaterial(ctx, input.Name, input.Unit)
		}
		return nil, err
	}
	return &material, nil
}
