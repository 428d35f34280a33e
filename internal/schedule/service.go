package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"festival/internal/editions"
	"festival/internal/notifications"
	"festival/internal/shared/apperror"
	"festival/internal/shared/constants"
	"festival/pkg/cache"
	"festival/pkg/logger"

	"github.com/google/uuid"
)

type Service interface {
	// Service dependency injection
	SetCacheService(cacheService cache.Service)
	SetPublisher(publisher notifications.Publisher)

	ValidateSlot(ctx context.Context, req ValidateSlotRequest) error
	FindConflicts(ctx context.Context, req ValidateSlotRequest) ([]Conflict, error)
	CreateSlot(ctx context.Context, req CreateSlotRequest) (*SlotChange, error)
	UpdateSlot(ctx context.Context, id uuid.UUID, req UpdateSlotRequest) (*SlotChange, error)
	AuditEdition(ctx context.Context, editionID uuid.UUID) (*AuditReport, error)
	CopyTemplate(ctx context.Context, req CopyTemplateRequest) (*CopyResult, error)
}

type service struct {
	repo         Repository
	editions     editions.Repository
	cacheService cache.Service
	publisher    notifications.Publisher
}

func NewService(repo Repository, editionsRepo editions.Repository) Service {
	return &service{
		repo:      repo,
		editions:  editionsRepo,
		publisher: notifications.Nop{},
	}
}

func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

func (s *service) SetPublisher(publisher notifications.Publisher) {
	s.publisher = publisher
}

func (s *service) ValidateSlot(ctx context.Context, req ValidateSlotRequest) error {
	conflicts, err := s.FindConflicts(ctx, req)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

// FindConflicts runs every check ValidateSlot does but returns the overlaps
// as data. Bounds and reference failures are still errors.
func (s *service) FindConflicts(ctx context.Context, req ValidateSlotRequest) ([]Conflict, error) {
	candidate, excluding, err := req.toCandidate()
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, candidate); err != nil {
		return nil, err
	}

	edition, err := s.editions.GetEdition(ctx, candidate.EditionID)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.checkCandidate(ctx, s.repo, edition, candidate, excluding)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		logger.GetDefault().LogSlotConflict(ctx, candidate.EditionID.String(), candidate.StageID.String(),
			candidate.Day.Format(editions.DateLayout), len(conflicts))
	}
	if conflicts == nil {
		conflicts = []Conflict{}
	}
	return conflicts, nil
}

func (s *service) CreateSlot(ctx context.Context, req CreateSlotRequest) (*SlotChange, error) {
	candidate, err := req.toSlot()
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, candidate); err != nil {
		return nil, err
	}
	edition, err := s.editions.GetEdition(ctx, candidate.EditionID)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithPartitionLock(ctx, candidate.Partition(), func(tx Repository) error {
		conflicts, err := s.checkCandidate(ctx, tx, edition, candidate, uuid.Nil)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}
		if err := tx.Create(ctx, candidate); err != nil {
			return fmt.Errorf("failed to create slot: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logRejection(ctx, candidate, err)
		return nil, err
	}

	change := &SlotChange{After: candidate}
	s.committed(ctx, change)
	return change, nil
}

// UpdateSlot re-validates the slot in its target partition. The row is
// re-read under lock so the returned Before reflects what was overwritten.
func (s *service) UpdateSlot(ctx context.Context, id uuid.UUID, req UpdateSlotRequest) (*SlotChange, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	target := *current
	if err := req.applyTo(&target); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, &target); err != nil {
		return nil, err
	}
	edition, err := s.editions.GetEdition(ctx, target.EditionID)
	if err != nil {
		return nil, err
	}

	var change *SlotChange
	err = s.repo.WithPartitionLock(ctx, target.Partition(), func(tx Repository) error {
		before, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		after := *before
		if err := req.applyTo(&after); err != nil {
			return err
		}
		if after.Partition() != target.Partition() {
			return apperror.New(apperror.KindConflict, "slot", "slot was moved by a concurrent update, retry")
		}
		if !before.Status.CanTransitionTo(after.Status) {
			return apperror.Validation("status",
				fmt.Sprintf("cannot change status from %s to %s", before.Status, after.Status))
		}

		conflicts, err := s.checkCandidate(ctx, tx, edition, &after, id)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}

		if err := tx.Save(ctx, &after); err != nil {
			return fmt.Errorf("failed to update slot: %w", err)
		}
		change = &SlotChange{Before: before, After: &after}
		return nil
	})
	if err != nil {
		s.logRejection(ctx, &target, err)
		return nil, err
	}

	s.committed(ctx, change)
	return change, nil
}

func (s *service) AuditEdition(ctx context.Context, editionID uuid.UUID) (*AuditReport, error) {
	if _, err := s.editions.GetEdition(ctx, editionID); err != nil {
		return nil, err
	}

	if s.cacheService == nil {
		return s.buildAudit(ctx, editionID)
	}

	version, err := s.cacheService.Version(ctx, constants.BuildScheduleVersionKey(editionID.String()))
	if err != nil {
		logger.GetDefault().WithError(err).Warn("schedule version lookup failed, skipping cache")
		return s.buildAudit(ctx, editionID)
	}

	var report AuditReport
	key := constants.BuildScheduleAuditKey(version, editionID.String())
	err = s.cacheService.GetOrSet(ctx, key, constants.TTL_SCHEDULE_AUDIT, func() (interface{}, error) {
		return s.buildAudit(ctx, editionID)
	}, &report)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *service) buildAudit(ctx context.Context, editionID uuid.UUID) (*AuditReport, error) {
	slots, err := s.repo.ListByEdition(ctx, editionID)
	if err != nil {
		return nil, err
	}

	overlaps := AuditSlots(slots)

	stageIDs := make([]uuid.UUID, 0, len(overlaps))
	artistIDs := make([]uuid.UUID, 0, len(overlaps))
	for _, o := range overlaps {
		stageIDs = append(stageIDs, o.Slot.StageID)
		artistIDs = append(artistIDs, o.Slot.ArtistID)
	}
	stageNames, err := s.editions.StageNames(ctx, stageIDs)
	if err != nil {
		return nil, err
	}
	artistNames, err := s.editions.ArtistNames(ctx, artistIDs)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{
		EditionID:    editionID.String(),
		SlotsChecked: len(slots),
		Conflicting:  len(overlaps),
		Entries:      make([]AuditEntry, 0, len(overlaps)),
	}
	for _, o := range overlaps {
		with := make([]string, len(o.OverlapsWith))
		for i, id := range o.OverlapsWith {
			with[i] = id.String()
		}
		report.Entries = append(report.Entries, AuditEntry{
			SlotID:       o.Slot.ID.String(),
			StageID:      o.Slot.StageID.String(),
			Stage:        stageNames[o.Slot.StageID],
			Artist:       artistNames[o.Slot.ArtistID],
			Day:          o.Slot.Day.Format(editions.DateLayout),
			Start:        o.Slot.StartTime,
			End:          o.Slot.EndTime,
			OverlapsWith: with,
		})
	}
	return report, nil
}

type copyOutcome int

const (
	copyCreated copyOutcome = iota
	copyDuplicate
	copyConflict
)

// CopyTemplate copies every slot of one edition into another. Each slot is
// placed independently; a rejected slot never rolls back the others. A dry
// run keeps the would-be rows in memory so its counts match a live run.
func (s *service) CopyTemplate(ctx context.Context, req CopyTemplateRequest) (*CopyResult, error) {
	fromID, err := parseID("from_edition", req.FromEditionID)
	if err != nil {
		return nil, err
	}
	toID, err := parseID("to_edition", req.ToEditionID)
	if err != nil {
		return nil, err
	}
	src, err := s.editions.GetEdition(ctx, fromID)
	if err != nil {
		return nil, err
	}
	dst, err := s.editions.GetEdition(ctx, toID)
	if err != nil {
		return nil, err
	}

	mapping, err := s.parseStageMapping(ctx, req.StageMapping)
	if err != nil {
		return nil, err
	}

	status := StatusTentative
	if req.TargetStatus != "" {
		status = SlotStatus(req.TargetStatus)
		if !status.IsValid() || !status.IsActive() {
			return nil, apperror.Validation("target_status", "must be tentative or confirmed")
		}
	}

	offset := src.DaysBetween(dst)
	if req.ShiftDays != nil {
		offset = *req.ShiftDays
	}

	source, err := s.repo.ListByEdition(ctx, src.ID)
	if err != nil {
		return nil, err
	}

	if err := s.checkCopyStages(ctx, source, mapping, dst.ID); err != nil {
		return nil, err
	}

	result := &CopyResult{TotalSource: len(source), OffsetDays: offset, DryRun: req.DryRun}
	planned := make(map[PartitionKey][]Slot)

	for _, orig := range source {
		day := editions.DateOf(orig.Day).AddDate(0, 0, offset)
		if !dst.Contains(day) {
			result.SkippedOutOfRange++
			continue
		}

		stageID := orig.StageID
		if mapped, ok := mapping[orig.StageID]; ok {
			stageID = mapped
		}

		candidate := &Slot{
			EditionID:   dst.ID,
			StageID:     stageID,
			ArtistID:    orig.ArtistID,
			Day:         day,
			StartTime:   orig.StartTime,
			EndTime:     orig.EndTime,
			Status:      status,
			IsHeadliner: orig.IsHeadliner,
			Notes:       strings.TrimSpace(fmt.Sprintf("[copied from %d] %s", src.Year, orig.Notes)),
		}

		outcome, err := s.copyOne(ctx, candidate, planned, req.DryRun)
		if err != nil {
			return nil, err
		}
		switch outcome {
		case copyDuplicate:
			result.SkippedDuplicate++
		case copyConflict:
			result.SkippedConflicts++
		default:
			result.Created++
			if !req.DryRun {
				s.committed(ctx, &SlotChange{After: candidate})
			}
		}
	}

	logger.GetDefault().InfoWithContext(ctx, "template copy finished", map[string]interface{}{
		"from_edition":         src.ID.String(),
		"to_edition":           dst.ID.String(),
		"created":              result.Created,
		"skipped_out_of_range": result.SkippedOutOfRange,
		"skipped_conflicts":    result.SkippedConflicts,
		"skipped_duplicate":    result.SkippedDuplicate,
		"dry_run":              req.DryRun,
	})
	return result, nil
}

func (s *service) copyOne(ctx context.Context, candidate *Slot, planned map[PartitionKey][]Slot, dryRun bool) (copyOutcome, error) {
	key := candidate.Partition()
	var outcome copyOutcome

	place := func(tx Repository) error {
		dup, err := tx.ExistsDuplicate(ctx, key, candidate.StartTime, candidate.ArtistID)
		if err != nil {
			return err
		}
		for _, p := range planned[key] {
			if p.StartTime == candidate.StartTime && p.ArtistID == candidate.ArtistID {
				dup = true
			}
		}
		if dup {
			outcome = copyDuplicate
			return nil
		}

		existing, err := tx.ListPartition(ctx, key)
		if err != nil {
			return err
		}
		existing = append(existing, planned[key]...)
		if len(DetectConflicts(candidate.Interval(), existing, uuid.Nil)) > 0 {
			outcome = copyConflict
			return nil
		}

		outcome = copyCreated
		if dryRun {
			planned[key] = append(planned[key], *candidate)
			return nil
		}
		if err := tx.Create(ctx, candidate); err != nil {
			return fmt.Errorf("failed to create copied slot: %w", err)
		}
		return nil
	}

	if dryRun {
		return outcome, place(s.repo)
	}
	return outcome, s.repo.WithPartitionLock(ctx, key, place)
}

func (s *service) parseStageMapping(ctx context.Context, raw map[string]string) (map[uuid.UUID]uuid.UUID, error) {
	mapping := make(map[uuid.UUID]uuid.UUID, len(raw))
	for from, to := range raw {
		fromID, err := parseID("stage_mapping", from)
		if err != nil {
			return nil, err
		}
		toID, err := parseID("stage_mapping", to)
		if err != nil {
			return nil, err
		}
		if _, err := s.editions.GetStage(ctx, toID); err != nil {
			return nil, err
		}
		mapping[fromID] = toID
	}
	return mapping, nil
}

// checkCopyStages rejects a copy that would land slots on a stage owned by
// another edition. Such stages have to be remapped through stage_mapping.
func (s *service) checkCopyStages(ctx context.Context, source []Slot, mapping map[uuid.UUID]uuid.UUID, dst uuid.UUID) error {
	seen := make(map[uuid.UUID]bool)
	for _, slot := range source {
		stageID := slot.StageID
		if mapped, ok := mapping[stageID]; ok {
			stageID = mapped
		}
		if seen[stageID] {
			continue
		}
		seen[stageID] = true

		stage, err := s.editions.GetStage(ctx, stageID)
		if err != nil {
			return err
		}
		if !stage.Serves(dst) {
			return apperror.Validation("stage_mapping",
				fmt.Sprintf("stage %s (%s) belongs to another edition; map it to a stage of the destination", stage.Name, stage.ID))
		}
	}
	return nil
}

// checkCandidate enforces time range and edition bounds, then returns the
// active slots of the candidate's partition that it overlaps. Canceled
// candidates never conflict.
func (s *service) checkCandidate(ctx context.Context, repo Repository, edition *editions.Edition, candidate *Slot, excluding uuid.UUID) ([]Conflict, error) {
	if !candidate.StartTime.Valid() || !candidate.EndTime.Valid() {
		return nil, apperror.Validation("start_time", "must be a time of day")
	}
	if candidate.EndTime <= candidate.StartTime {
		return nil, apperror.Validation("end_time", "must be after start_time")
	}
	if !edition.Contains(candidate.Day) {
		return nil, apperror.Validation("day", fmt.Sprintf("must be within the edition dates %s to %s",
			edition.StartDate.Format(editions.DateLayout), edition.EndDate.Format(editions.DateLayout)))
	}
	if !candidate.Status.IsActive() {
		return nil, nil
	}

	existing, err := repo.ListPartition(ctx, candidate.Partition())
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, DetectConflicts(candidate.Interval(), existing, excluding))
}

func (s *service) describe(ctx context.Context, hits []Slot) ([]Conflict, error) {
	if len(hits) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(hits))
	for i, h := range hits {
		ids[i] = h.ArtistID
	}
	names, err := s.editions.ArtistNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	conflicts := make([]Conflict, len(hits))
	for i, h := range hits {
		conflicts[i] = Conflict{SlotID: h.ID, Start: h.StartTime, End: h.EndTime, Artist: names[h.ArtistID]}
	}
	return conflicts, nil
}

func (s *service) checkReferences(ctx context.Context, slot *Slot) error {
	stage, err := s.editions.GetStage(ctx, slot.StageID)
	if err != nil {
		return err
	}
	if !stage.Serves(slot.EditionID) {
		return apperror.Validation("stage_id", "stage belongs to another edition")
	}
	if _, err := s.editions.GetArtist(ctx, slot.ArtistID); err != nil {
		return err
	}
	return nil
}

func (s *service) committed(ctx context.Context, change *SlotChange) {
	slot := change.After
	event, emit := change.EventType()
	logger.GetDefault().LogSlotCommitted(ctx, slot.ID.String(), slot.Status.String(), string(event))

	if emit {
		s.publisher.Publish(ctx, notifications.NewEvent(event, slot.ID, slot.EditionID, slot.ToResponse()))
	}

	if s.cacheService != nil {
		if _, err := s.cacheService.BumpVersion(ctx, constants.BuildScheduleVersionKey(slot.EditionID.String())); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to bump schedule version", "edition_id", slot.EditionID.String())
		}
	}
}

func (s *service) logRejection(ctx context.Context, slot *Slot, err error) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		logger.GetDefault().LogSlotConflict(ctx, slot.EditionID.String(), slot.StageID.String(),
			slot.Day.Format(editions.DateLayout), len(ce.Conflicts))
	}
}
