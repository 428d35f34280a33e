package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"festival/internal/editions"
	"festival/internal/notifications"
	"festival/internal/shared/apperror"
	"festival/internal/shared/config"
	"festival/internal/shared/constants"
	"festival/pkg/cache"
	"festival/pkg/logger"
	"festival/pkg/ratelimit"

	"github.com/google/uuid"
)

type Service interface {
	// Service dependency injection
	SetCacheService(cacheService cache.Service)
	SetPublisher(publisher notifications.Publisher)
	SetRateLimiter(limiter ratelimit.Limiter)

	// Administration
	GetTicketType(ctx context.Context, id uuid.UUID) (*TicketTypeResponse, error)
	CreateTicketType(ctx context.Context, req CreateTicketTypeRequest) (*TicketTypeResponse, error)
	UpdateTicketType(ctx context.Context, id uuid.UUID, req UpdateTicketTypeRequest) (*TicketTypeResponse, error)
	DeleteTicketType(ctx context.Context, id uuid.UUID) error

	// Inventory
	Reserve(ctx context.Context, id uuid.UUID, origin string, req ReserveRequest) (*ReservationOutcome, error)
	OnSaleListing(ctx context.Context, editionID *uuid.UUID) ([]TicketTypeResponse, error)
	StatsSummary(ctx context.Context, editionID *uuid.UUID) (*StatsSummary, error)

	// Pricing phases
	AdvanceIfDue(ctx context.Context, id uuid.UUID, ref time.Time, rules PhaseRules) (*PhaseTransition, error)
	ExplicitAdvance(ctx context.Context, id uuid.UUID) (*PhaseTransition, error)
	AdvancePhases(ctx context.Context, req AdvancePhasesRequest) (*AdvancePhasesResult, error)
}

// Options tune listing cache lifetime and the default phase rules
type Options struct {
	OnSaleTTL time.Duration
	Rules     PhaseRules
	Location  *time.Location
}

// OptionsFromConfig maps the env configuration onto service options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		OnSaleTTL: cfg.Tickets.OnSaleCacheTTL,
		Rules: PhaseRules{
			DaysSinceStart: cfg.Tickets.PhaseDays,
			RemainingPct:   cfg.Tickets.PhaseRemainingPct,
		},
		Location: cfg.Location(),
	}
}

type service struct {
	repo         Repository
	editions     editions.Repository
	cacheService cache.Service
	publisher    notifications.Publisher
	limiter      ratelimit.Limiter
	opts         Options
	now          func() time.Time
}

func NewService(repo Repository, editionsRepo editions.Repository, opts Options) Service {
	if opts.OnSaleTTL <= 0 {
		opts.OnSaleTTL = constants.TTL_TICKETS_ON_SALE
	}
	if opts.Rules == (PhaseRules{}) {
		opts.Rules = DefaultPhaseRules()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &service{
		repo:      repo,
		editions:  editionsRepo,
		publisher: notifications.Nop{},
		opts:      opts,
		now:       time.Now,
	}
}

func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

func (s *service) SetPublisher(publisher notifications.Publisher) {
	s.publisher = publisher
}

func (s *service) SetRateLimiter(limiter ratelimit.Limiter) {
	s.limiter = limiter
}

func (s *service) GetTicketType(ctx context.Context, id uuid.UUID) (*TicketTypeResponse, error) {
	tt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := tt.ToResponse(s.now())
	return &resp, nil
}

func (s *service) CreateTicketType(ctx context.Context, req CreateTicketTypeRequest) (*TicketTypeResponse, error) {
	tt, err := req.toTicketType()
	if err != nil {
		return nil, err
	}
	edition, err := s.editions.GetEdition(ctx, tt.EditionID)
	if err != nil {
		return nil, err
	}
	if err := tt.Validate(edition); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, tt); err != nil {
		return nil, err
	}

	s.bumpVersion(ctx)
	logger.GetDefault().InfoWithContext(ctx, "ticket type created", map[string]interface{}{
		"ticket_type_id": tt.ID.String(),
		"edition_id":     tt.EditionID.String(),
		"code":           tt.Code,
	})

	resp := tt.ToResponse(s.now())
	return &resp, nil
}

// UpdateTicketType applies admin edits under the row lock and emits
// sale_opened or sale_closed when the edit flips the on-sale state.
func (s *service) UpdateTicketType(ctx context.Context, id uuid.UUID, req UpdateTicketTypeRequest) (*TicketTypeResponse, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	edition, err := s.editions.GetEdition(ctx, current.EditionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var before, after TicketType
	err = s.repo.WithLockedTicketType(ctx, id, func(tt *TicketType) (bool, error) {
		before = *tt
		if err := req.applyTo(tt); err != nil {
			return false, err
		}
		if err := tt.Validate(edition); err != nil {
			return false, err
		}
		after = *tt
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.bumpVersion(ctx)
	s.publishSaleTransition(ctx, before.IsOnSale(now), &after, now)

	resp := after.ToResponse(now)
	return &resp, nil
}

func (s *service) DeleteTicketType(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.bumpVersion(ctx)
	logger.GetDefault().InfoWithContext(ctx, "ticket type deleted", map[string]interface{}{
		"ticket_type_id": id.String(),
	})
	return nil
}

// Reserve takes quantity units of a ticket type. The rate limit is checked
// before any inventory read; everything else happens under the row lock so
// concurrent reservations on one ticket type serialize.
func (s *service) Reserve(ctx context.Context, id uuid.UUID, origin string, req ReserveRequest) (*ReservationOutcome, error) {
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 1 {
		return nil, apperror.Validation("quantity", "must be at least 1")
	}

	if err := s.checkRateLimit(ctx, origin); err != nil {
		logger.GetDefault().LogReservationRejected(ctx, id.String(), err.Error())
		return nil, err
	}

	now := s.now()
	var outcome *ReservationOutcome
	var closed bool
	var snapshot TicketType

	err := s.repo.WithLockedTicketType(ctx, id, func(tt *TicketType) (bool, error) {
		if reason := tt.saleWindowReason(now); reason != "" {
			return false, &NotOnSaleError{Reason: reason}
		}

		remaining := tt.QuotaRemaining()
		if quantity > remaining {
			return false, &InsufficientQuotaError{Requested: quantity, Remaining: remaining}
		}

		reserved := tt.ChannelReserved().Clone()
		if req.Channel != "" {
			quota := tt.ChannelQuota(req.Channel)
			already := reserved[req.Channel]
			if already+quantity > quota {
				return false, &ChannelQuotaExceededError{
					Channel:   req.Channel,
					Requested: quantity,
					Reserved:  already,
					Quota:     quota,
					Available: max(0, quota-already),
				}
			}
			reserved[req.Channel] = already + quantity
		}

		if req.DryRun {
			projected := remaining - quantity
			outcome = &ReservationOutcome{
				OK:                true,
				ID:                tt.ID.String(),
				DryRun:            true,
				Quantity:          quantity,
				Channel:           req.Channel,
				Reserved:          tt.QuotaReserved,
				QuotaRemaining:    remaining,
				RemainingIfOK:     &projected,
				ReservedByChannel: tt.ChannelReserved(),
			}
			return false, nil
		}

		tt.QuotaReserved += quantity
		tt.SetChannelReserved(reserved)
		if err := tt.Validate(nil); err != nil {
			return false, err
		}

		closed = !tt.IsOnSale(now)
		snapshot = *tt
		outcome = &ReservationOutcome{
			OK:                true,
			ID:                tt.ID.String(),
			Quantity:          quantity,
			Channel:           req.Channel,
			Reserved:          tt.QuotaReserved,
			QuotaRemaining:    tt.QuotaRemaining(),
			ReservedByChannel: reserved,
		}
		return true, nil
	})
	if err != nil {
		var typed apperror.Typed
		if errors.As(err, &typed) {
			logger.GetDefault().LogReservationRejected(ctx, id.String(), err.Error())
		}
		return nil, err
	}

	logger.GetDefault().LogReservation(ctx, id.String(), req.Channel, quantity, outcome.QuotaRemaining, req.DryRun)
	if req.DryRun {
		return outcome, nil
	}

	s.bumpVersion(ctx)
	if closed {
		s.publisher.Publish(ctx, notifications.NewEvent(notifications.EventTicketSaleClosed,
			snapshot.ID, snapshot.EditionID, snapshot.salePayload()))
	}
	return outcome, nil
}

func (s *service) checkRateLimit(ctx context.Context, origin string) error {
	if s.limiter == nil {
		return nil
	}
	result, err := s.limiter.IsAllowed(ctx, origin, ratelimit.RateLimitTypeReserve)
	if err != nil {
		return fmt.Errorf("rate limit check failed: %w", err)
	}
	if !result.Allowed {
		logger.GetDefault().LogRateLimitExceeded(ctx, origin, "reserve")
		return &RateLimitedError{Limit: result.Limit, ResetAt: result.ResetTime}
	}
	return nil
}

// OnSaleListing is cached under the current on-sale version, so any
// mutation makes older entries unreachable.
func (s *service) OnSaleListing(ctx context.Context, editionID *uuid.UUID) ([]TicketTypeResponse, error) {
	fetch := func() ([]TicketTypeResponse, error) {
		types, err := s.repo.List(ctx, ListFilter{EditionID: editionID})
		if err != nil {
			return nil, err
		}
		now := s.now()
		listing := make([]TicketTypeResponse, 0, len(types))
		for i := range types {
			if types[i].IsOnSale(now) {
				listing = append(listing, types[i].ToResponse(now))
			}
		}
		return listing, nil
	}

	version, ok := s.currentVersion(ctx)
	if !ok {
		return fetch()
	}

	var listing []TicketTypeResponse
	key := constants.BuildOnSaleKey(version, scope(editionID))
	err := s.cacheService.GetOrSet(ctx, key, s.opts.OnSaleTTL, func() (interface{}, error) {
		return fetch()
	}, &listing)
	if err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *service) StatsSummary(ctx context.Context, editionID *uuid.UUID) (*StatsSummary, error) {
	version, ok := s.currentVersion(ctx)
	if !ok {
		return s.buildStats(ctx, editionID)
	}

	var summary StatsSummary
	key := constants.BuildTicketStatsKey(version, scope(editionID))
	err := s.cacheService.GetOrSet(ctx, key, constants.TTL_TICKETS_STATS, func() (interface{}, error) {
		return s.buildStats(ctx, editionID)
	}, &summary)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *service) buildStats(ctx context.Context, editionID *uuid.UUID) (*StatsSummary, error) {
	types, err := s.repo.List(ctx, ListFilter{EditionID: editionID})
	if err != nil {
		return nil, err
	}

	now := s.now()
	summary := &StatsSummary{
		Edition: scope(editionID),
		ByPhase: make(map[Phase]PhaseStats, len(phaseOrder)),
	}
	for _, p := range phaseOrder {
		summary.ByPhase[p] = PhaseStats{}
	}

	revenue := 0.0
	for i := range types {
		tt := &types[i]
		onSale := tt.IsOnSale(now)

		summary.TotalTypes++
		summary.QuotaTotal += tt.QuotaTotal
		summary.QuotaReserved += tt.QuotaReserved
		summary.QuotaRemaining += tt.QuotaRemaining()
		revenue += tt.Price * float64(tt.QuotaRemaining())

		stats := summary.ByPhase[tt.Phase]
		stats.Count++
		if onSale {
			summary.OnSale++
			stats.OnSale++
		}
		summary.ByPhase[tt.Phase] = stats
	}
	summary.RevenuePotential = formatAmount(revenue)
	return summary, nil
}

// AdvanceIfDue moves a ticket type at most one phase forward when the rules
// apply at ref. A nil transition means nothing changed.
func (s *service) AdvanceIfDue(ctx context.Context, id uuid.UUID, ref time.Time, rules PhaseRules) (*PhaseTransition, error) {
	var transition *PhaseTransition
	err := s.repo.WithLockedTicketType(ctx, id, func(tt *TicketType) (bool, error) {
		next, due := NextPhaseIfDue(tt, ref, rules, s.opts.Location)
		if !due {
			return false, nil
		}
		from := tt.Phase
		tt.Phase = next
		transition = newTransition(tt, from)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if transition != nil {
		s.phaseChanged(ctx, transition)
	}
	return transition, nil
}

// ExplicitAdvance steps to the next phase regardless of the rules
func (s *service) ExplicitAdvance(ctx context.Context, id uuid.UUID) (*PhaseTransition, error) {
	var transition *PhaseTransition
	err := s.repo.WithLockedTicketType(ctx, id, func(tt *TicketType) (bool, error) {
		next, ok := tt.Phase.Next()
		if !ok {
			return false, apperror.Validation("phase", fmt.Sprintf("no phase after %s", tt.Phase))
		}
		from := tt.Phase
		tt.Phase = next
		transition = newTransition(tt, from)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.phaseChanged(ctx, transition)
	return transition, nil
}

// AdvancePhases evaluates every ticket type in scope. Each one is locked and
// committed on its own; a failure stops the run but keeps earlier steps.
func (s *service) AdvancePhases(ctx context.Context, req AdvancePhasesRequest) (*AdvancePhasesResult, error) {
	editionID, err := optionalID("edition", req.EditionID)
	if err != nil {
		return nil, err
	}

	ref := s.now().In(s.opts.Location)
	if req.ReferenceDate != "" {
		day, err := editions.ParseDate(req.ReferenceDate)
		if err != nil {
			return nil, apperror.Validation("reference_date", "must be a date formatted YYYY-MM-DD")
		}
		ref = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.opts.Location)
	}

	rules := s.opts.Rules
	if req.DaysSinceStart != nil {
		rules.DaysSinceStart = *req.DaysSinceStart
	}
	if req.RemainingPct != nil {
		rules.RemainingPct = *req.RemainingPct
	}

	types, err := s.repo.List(ctx, ListFilter{EditionID: editionID})
	if err != nil {
		return nil, err
	}

	result := &AdvancePhasesResult{
		ReferenceDate: ref.Format(editions.DateLayout),
		Rules:         rules,
		Transitions:   []PhaseTransition{},
	}
	for i := range types {
		result.Checked++
		transition, err := s.AdvanceIfDue(ctx, types[i].ID, ref, rules)
		if err != nil {
			return nil, err
		}
		if transition != nil {
			result.Changed++
			result.Transitions = append(result.Transitions, *transition)
		}
	}

	logger.GetDefault().InfoWithContext(ctx, "phase progression finished", map[string]interface{}{
		"reference_date": result.ReferenceDate,
		"checked":        result.Checked,
		"changed":        result.Changed,
	})
	return result, nil
}

func (s *service) phaseChanged(ctx context.Context, t *PhaseTransition) {
	logger.GetDefault().LogPhaseChanged(ctx, t.TicketTypeID, string(t.From), string(t.To))

	id, _ := uuid.Parse(t.TicketTypeID)
	editionID, _ := uuid.Parse(t.EditionID)
	s.publisher.Publish(ctx, notifications.NewEvent(notifications.EventTicketPhaseChanged, id, editionID, t))
	s.bumpVersion(ctx)
}

func (s *service) publishSaleTransition(ctx context.Context, wasOnSale bool, tt *TicketType, now time.Time) {
	isOnSale := tt.IsOnSale(now)
	if wasOnSale == isOnSale {
		return
	}
	event := notifications.EventTicketSaleClosed
	if isOnSale {
		event = notifications.EventTicketSaleOpened
	}
	s.publisher.Publish(ctx, notifications.NewEvent(event, tt.ID, tt.EditionID, tt.salePayload()))
}

func (s *service) currentVersion(ctx context.Context) (int64, bool) {
	if s.cacheService == nil {
		return 0, false
	}
	version, err := s.cacheService.Version(ctx, constants.CACHE_KEY_TICKETS_ON_SALE_VERSION)
	if err != nil {
		logger.GetDefault().WithError(err).Warn("on-sale version lookup failed, skipping cache")
		return 0, false
	}
	return version, true
}

func (s *service) bumpVersion(ctx context.Context) {
	if s.cacheService == nil {
		return
	}
	if _, err := s.cacheService.BumpVersion(ctx, constants.CACHE_KEY_TICKETS_ON_SALE_VERSION); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to bump on-sale version")
	}
}

func scope(editionID *uuid.UUID) string {
	if editionID == nil {
		return ""
	}
	return editionID.String()
}
