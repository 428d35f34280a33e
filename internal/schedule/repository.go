package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"festival/internal/editions"
	"festival/internal/shared/apperror"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// WithPartitionLock runs fn inside one transaction that holds an exclusive
	// lock on the partition. Writers on other partitions are not blocked.
	WithPartitionLock(ctx context.Context, key PartitionKey, fn func(tx Repository) error) error

	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// GetForUpdate reads a slot and locks its row until the transaction ends
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListPartition(ctx context.Context, key PartitionKey) ([]Slot, error)
	ListByEdition(ctx context.Context, editionID uuid.UUID) ([]Slot, error)
	ExistsDuplicate(ctx context.Context, key PartitionKey, start TimeOfDay, artistID uuid.UUID) (bool, error)
	Create(ctx context.Context, slot *Slot) error
	Save(ctx context.Context, slot *Slot) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// advisoryLockKey folds a partition into the bigint keyspace of pg_advisory_xact_lock
func advisoryLockKey(key PartitionKey) int64 {
	return int64(xxhash.Sum64String("schedule:" + key.String()))
}

func (r *repository) WithPartitionLock(ctx context.Context, key PartitionKey, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", advisoryLockKey(key)).Error; err != nil {
			return fmt.Errorf("failed to lock partition %s: %w", key, err)
		}
		return fn(&repository{db: tx})
	})
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	var slot Slot
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&slot).Error; err != nil {
		return nil, slotNotFound(err)
	}
	return &slot, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	var slot Slot
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&slot).Error
	if err != nil {
		return nil, slotNotFound(err)
	}
	return &slot, nil
}

func (r *repository) ListPartition(ctx context.Context, key PartitionKey) ([]Slot, error) {
	var slots []Slot
	err := r.db.WithContext(ctx).
		Where("edition_id = ? AND stage_id = ? AND day = ?", key.EditionID, key.StageID, key.Day.Format(editions.DateLayout)).
		Where("status <> ?", StatusCanceled).
		Order("start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list partition %s: %w", key, err)
	}
	return slots, nil
}

func (r *repository) ListByEdition(ctx context.Context, editionID uuid.UUID) ([]Slot, error) {
	var slots []Slot
	err := r.db.WithContext(ctx).
		Where("edition_id = ?", editionID).
		Order("day ASC, stage_id ASC, start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list slots for edition %s: %w", editionID, err)
	}
	return slots, nil
}

func (r *repository) ExistsDuplicate(ctx context.Context, key PartitionKey, start TimeOfDay, artistID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Slot{}).
		Where("edition_id = ? AND stage_id = ? AND day = ?", key.EditionID, key.StageID, key.Day.Format(editions.DateLayout)).
		Where("start_time = ? AND artist_id = ?", start, artistID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate slot: %w", err)
	}
	return count > 0, nil
}

func (r *repository) Create(ctx context.Context, slot *Slot) error {
	return r.db.WithContext(ctx).Create(slot).Error
}

func (r *repository) Save(ctx context.Context, slot *Slot) error {
	slot.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(slot).Error
}

func slotNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("slot")
	}
	return fmt.Errorf("failed to load slot: %w", err)
}
