package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"festival/internal/shared/apperror"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockedFunc inspects and may modify a row held under an exclusive lock.
// Returning persist=true writes the row back before the lock is released;
// returning an error rolls the transaction back.
type LockedFunc func(tt *TicketType) (persist bool, err error)

type ListFilter struct {
	EditionID *uuid.UUID
}

type Repository interface {
	// WithLockedTicketType is the only path that mutates reservation and
	// phase state. Calls on different ticket types never block each other.
	WithLockedTicketType(ctx context.Context, id uuid.UUID, fn LockedFunc) error

	GetByID(ctx context.Context, id uuid.UUID) (*TicketType, error)
	List(ctx context.Context, filter ListFilter) ([]TicketType, error)
	Create(ctx context.Context, tt *TicketType) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithLockedTicketType(ctx context.Context, id uuid.UUID, fn LockedFunc) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tt TicketType
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&tt).Error
		if err != nil {
			return ticketTypeNotFound(err)
		}

		persist, err := fn(&tt)
		if err != nil || !persist {
			return err
		}

		tt.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&tt).Error; err != nil {
			return translateWriteError(err)
		}
		return nil
	})
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*TicketType, error) {
	var tt TicketType
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tt).Error; err != nil {
		return nil, ticketTypeNotFound(err)
	}
	return &tt, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]TicketType, error) {
	var types []TicketType
	query := r.db.WithContext(ctx).Model(&TicketType{})
	if filter.EditionID != nil {
		query = query.Where("edition_id = ?", *filter.EditionID)
	}
	if err := query.Order("edition_id ASC, code ASC").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("failed to list ticket types: %w", err)
	}
	return types, nil
}

func (r *repository) Create(ctx context.Context, tt *TicketType) error {
	if err := r.db.WithContext(ctx).Create(tt).Error; err != nil {
		return translateWriteError(err)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&TicketType{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete ticket type: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("ticket_type")
	}
	return nil
}

func ticketTypeNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("ticket_type")
	}
	return fmt.Errorf("failed to load ticket type: %w", err)
}

// translateWriteError relies on gorm.Config.TranslateError being enabled
func translateWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Validation("code", "already used by another ticket type of this edition")
	}
	return fmt.Errorf("failed to save ticket type: %w", err)
}
