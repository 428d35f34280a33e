package editions

import (
	"context"
	"errors"
	"fmt"

	"festival/internal/shared/apperror"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the read side of the referenced entities. Lookups of a
// missing row return an apperror NotFound.
type Repository interface {
	GetEdition(ctx context.Context, id uuid.UUID) (*Edition, error)
	GetEditionByYear(ctx context.Context, year int) (*Edition, error)
	GetStage(ctx context.Context, id uuid.UUID) (*Stage, error)
	GetArtist(ctx context.Context, id uuid.UUID) (*Artist, error)
	StageNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	ArtistNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)

	CreateEdition(ctx context.Context, edition *Edition) error
	CreateStage(ctx context.Context, stage *Stage) error
	CreateArtist(ctx context.Context, artist *Artist) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetEdition(ctx context.Context, id uuid.UUID) (*Edition, error) {
	var edition Edition
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&edition).Error; err != nil {
		return nil, notFound(err, "edition")
	}
	return &edition, nil
}

func (r *repository) GetEditionByYear(ctx context.Context, year int) (*Edition, error) {
	var edition Edition
	if err := r.db.WithContext(ctx).Where("year = ?", year).First(&edition).Error; err != nil {
		return nil, notFound(err, "edition")
	}
	return &edition, nil
}

func (r *repository) GetStage(ctx context.Context, id uuid.UUID) (*Stage, error) {
	var stage Stage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&stage).Error; err != nil {
		return nil, notFound(err, "stage")
	}
	return &stage, nil
}

func (r *repository) GetArtist(ctx context.Context, id uuid.UUID) (*Artist, error) {
	var artist Artist
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&artist).Error; err != nil {
		return nil, notFound(err, "artist")
	}
	return &artist, nil
}

func (r *repository) StageNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	var stages []Stage
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	if err := r.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&stages).Error; err != nil {
		return nil, fmt.Errorf("failed to load stage names: %w", err)
	}
	for _, s := range stages {
		names[s.ID] = s.Name
	}
	return names, nil
}

func (r *repository) ArtistNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	var artists []Artist
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	if err := r.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&artists).Error; err != nil {
		return nil, fmt.Errorf("failed to load artist names: %w", err)
	}
	for _, a := range artists {
		names[a.ID] = a.Name
	}
	return names, nil
}

func (r *repository) CreateEdition(ctx context.Context, edition *Edition) error {
	if DateOf(edition.EndDate).Before(DateOf(edition.StartDate)) {
		return apperror.Validation("end_date", "must not precede start_date")
	}
	return r.db.WithContext(ctx).Create(edition).Error
}

func (r *repository) CreateStage(ctx context.Context, stage *Stage) error {
	return r.db.WithContext(ctx).Create(stage).Error
}

func (r *repository) CreateArtist(ctx context.Context, artist *Artist) error {
	return r.db.WithContext(ctx).Create(artist).Error
}

func notFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(entity)
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}
