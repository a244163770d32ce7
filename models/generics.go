package models

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/sitebooks_backend/utils"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// mysql: ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

// getResource fetches one row by id (RecordNotFound becomes *utils.NotFoundError).
func getResource[T any](ctx context.Context, s *Store, resource string, id string) (*T, error) {
	var result T
	if id == "" {
		return nil, utils.NewNotFoundError(resource, id)
	}
	err := s.conn(ctx).Where("id = ?", id).Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError(resource, id)
		}
		return nil, err
	}
	return &result, nil
}

// validateResourceId returns *utils.NotFoundError when id does not exist.
func validateResourceId[T any](ctx context.Context, s *Store, resource string, id string) error {
	count, err := resourceCountWhere[T](ctx, s, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return utils.NewNotFoundError(resource, id)
	}
	return nil
}

// validateUnique returns *utils.ConflictError when another row (other than exceptId) has column = value.
func validateUnique[T any](ctx context.Context, s *Store, column string, value any, exceptId string, message string) error {
	var (
		count int64
		err   error
	)
	if exceptId == "" {
		count, err = resourceCountWhere[T](ctx, s, column+" = ?", value)
	} else {
		count, err = resourceCountWhere[T](ctx, s, column+" = ? AND NOT id = ?", value, exceptId)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.NewConflictError(column, message)
	}
	return nil
}

func resourceCountWhere[T any](ctx context.Context, s *Store, condition string, value ...any) (int64, error) {
	var model T
	var count int64
	if err := s.conn(ctx).Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// translateWriteError turns a unique-key violation that slipped past validateUnique
// (two concurrent writers) into the same *utils.ConflictError.
func translateWriteError(err error, field, message string) error {
	if err == nil {
		return nil
	}
	if isDuplicateKey(err) {
		return utils.NewConflictError(field, message)
	}
	return err
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

func newId() string {
	return uuid.NewString()
}

func requirePositive(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return utils.NewFieldError(field, "gt", field+" must be greater than 0")
	}
	return nil
}

func requireNonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return utils.NewFieldError(field, "gte", field+" must not be negative")
	}
	return nil
}

// deleteById deletes one row and reports NotFound when nothing matched.
func deleteById[T any](ctx context.Context, s *Store, resource string, id string) error {
	var model T
	result := s.conn(ctx).Where("id = ?", id).Delete(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NewNotFoundError(resource, id)
	}
	return nil
}
