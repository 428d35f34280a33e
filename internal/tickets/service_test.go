package tickets

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"festival/internal/editions"
	"festival/internal/notifications"
	"festival/internal/shared/apperror"
	"festival/pkg/cache"
	"festival/pkg/ratelimit"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo    *memRepo
	pub     *recordingPublisher
	svc     *service
	edition *editions.Edition
	other   *editions.Edition
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	edition := &editions.Edition{ID: uuid.New(), Year: 2025, StartDate: mustDate("2025-07-18"), EndDate: mustDate("2025-07-20")}
	other := &editions.Edition{ID: uuid.New(), Year: 2026, StartDate: mustDate("2026-07-17"), EndDate: mustDate("2026-07-19")}
	eds := stubEditions{byID: map[uuid.UUID]*editions.Edition{edition.ID: edition, other.ID: other}}

	repo := newMemRepo()
	pub := &recordingPublisher{}
	svc := NewService(repo, eds, Options{}).(*service)
	svc.now = func() time.Time { return fixedNow }
	svc.SetPublisher(pub)

	return &fixture{repo: repo, pub: pub, svc: svc, edition: edition, other: other}
}

// onSale stores an active ticket type whose sale opened yesterday
func (f *fixture) onSale(code string, total int, quotas ChannelMap) TicketType {
	tt := TicketType{
		EditionID:  f.edition.ID,
		Code:       code,
		Name:       code,
		Price:      60,
		Currency:   DefaultCurrency,
		VATRate:    20,
		Phase:      PhaseRegular,
		QuotaTotal: total,
		SaleStart:  ptr(fixedNow.Add(-24 * time.Hour)),
		IsActive:   true,
	}
	tt.SetChannelQuotas(quotas)
	tt.SetChannelReserved(ChannelMap{})
	return f.repo.put(tt)
}

func reserve(f *fixture, id uuid.UUID, quantity int, channel string) (*ReservationOutcome, error) {
	return f.svc.Reserve(context.Background(), id, "10.0.0.1", ReserveRequest{Quantity: &quantity, Channel: channel})
}

func TestReserveConcurrentReservationsExhaustQuota(t *testing.T) {
	f := newFixture(t)
	tt := f.onSale("PASS3J", 50, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		channel := "online"
		if i%2 == 1 {
			channel = "partner"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reserve(f, tt.ID, 5, channel)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored := f.repo.get(tt.ID)
	assert.Equal(t, 50, stored.QuotaReserved)
	assert.Equal(t, ChannelMap{"online": 25, "partner": 25}, stored.ChannelReserved())
	assert.Equal(t, []notifications.EventType{notifications.EventTicketSaleClosed}, f.pub.types())

	_, err := reserve(f, tt.ID, 1, "")
	var insufficient *InsufficientQuotaError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Remaining)
	assert.Equal(t, 1, insufficient.Requested)
}

func TestReserveNeverOversells(t *testing.T) {
	f := newFixture(t)
	tt := f.onSale("PASS1J", 50, nil)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reserve(f, tt.ID, 3, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if apperror.IsKind(err, apperror.KindInsufficientQuota) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, ok)
	assert.Equal(t, 4, rejected)
	assert.Equal(t, 48, f.repo.get(tt.ID).QuotaReserved)
}

func TestReserveChannelQuota(t *testing.T) {
	f := newFixture(t)
	tt := f.onSale("PASS1J", 10, ChannelMap{"online": 8, "partner": 2})

	_, err := reserve(f, tt.ID, 9, "online")
	var exceeded *ChannelQuotaExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, ChannelQuotaExceededError{Channel: "online", Requested: 9, Reserved: 0, Quota: 8, Available: 8}, *exceeded)
	assert.Equal(t, 0, f.repo.get(tt.ID).QuotaReserved)

	outcome, err := reserve(f, tt.ID, 8, "online")
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.QuotaRemaining)
	assert.Equal(t, ChannelMap{"online": 8}, outcome.ReservedByChannel)

	_, err = reserve(f, tt.ID, 1, "online")
	assert.True(t, apperror.IsKind(err, apperror.KindChannelQuotaExceeded))

	outcome, err = reserve(f, tt.ID, 2, "partner")
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.QuotaRemaining)
	assert.Equal(t, 10, outcome.Reserved)
}

func TestReserveUnlistedChannelDrawsOnTotal(t *testing.T) {
	f := newFixture(t)
	tt := f.onSale("PASS1J", 10, ChannelMap{"online": 8})

	outcome, err := reserve(f, tt.ID, 10, "box_office")
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.QuotaRemaining)
	assert.Equal(t, ChannelMap{"box_office": 10}, f.repo.get(tt.ID).ChannelReserved())
}

func TestReserveDryRunDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	tt := f.onSale("PASS1J", 5, nil)

	outcome, err := f.svc.Reserve(context.Background(), tt.ID, "10.0.0.1", ReserveRequest{Quantity: ptr(3), DryRun: true})
	require.NoError(t, err)
	assert.True(t, outcome.DryRun)
	assert.Equal(t, 5, outcome.QuotaRemaining)
	require.NotNil(t, outcome.RemainingIfOK)
	assert.Equal(t, 2, *outcome.RemainingIfOK)

	stored := f.repo.get(tt.ID)
	assert.Equal(t, 0, stored.QuotaReserved)
	assert.Empty(t, stored.ChannelReserved())
	assert.Empty(t, f.pub.types())

	_, err = f.svc.Reserve(context.Background(), tt.ID, "10.0.0.1", ReserveRequest{Quantity: ptr(6), DryRun: true})
	assert.True(t, apperror.IsKind(err, apperror.KindInsufficientQuota))
}

func TestReserveRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tt := f.onSale("PASS1J", 5, nil)
	_, err := reserve(f, tt.ID, 0, "")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	outcome, err := f.svc.Reserve(ctx, tt.ID, "10.0.0.1", ReserveRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Quantity)

	inactive := f.onSale("INACTIVE", 5, nil)
	inactive.IsActive = false
	f.repo.put(inactive)

	future := f.onSale("FUTURE", 5, nil)
	future.SaleStart = ptr(fixedNow.Add(time.Hour))
	f.repo.put(future)

	ended := f.onSale("ENDED", 5, nil)
	ended.SaleStart = ptr(fixedNow.Add(-48 * time.Hour))
	ended.SaleEnd = ptr(fixedNow.Add(-time.Second))
	f.repo.put(ended)

	for id, reason := range map[uuid.UUID]string{
		inactive.ID: "inactive",
		future.ID:   "sale not started",
		ended.ID:    "sale ended",
	} {
		_, err := reserve(f, id, 1, "")
		var notOnSale *NotOnSaleError
		require.ErrorAs(t, err, &notOnSale)
		assert.Equal(t, reason, notOnSale.Reason)
		assert.Equal(t, 0, f.repo.get(id).QuotaReserved)
	}

	_, err = reserve(f, uuid.New(), 1, "")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestReserveRateLimitedBeforeInventory(t *testing.T) {
	f := newFixture(t)
	f.svc.SetRateLimiter(ratelimit.NewMemoryRateLimiter(&ratelimit.Config{
		Enabled:         true,
		WindowDuration:  time.Minute,
		ReserveRequests: 2,
	}))
	tt := f.onSale("PASS1J", 5, nil)

	for i := 0; i < 2; i++ {
		_, err := reserve(f, tt.ID, 1, "")
		require.NoError(t, err)
	}

	_, err := reserve(f, tt.ID, 1, "")
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, 2, limited.Limit)
	assert.Equal(t, int64(2), f.repo.lockCalls.Load())

	// unknown ticket types are throttled too, the row is never read
	_, err = reserve(f, uuid.New(), 1, "")
	assert.True(t, apperror.IsKind(err, apperror.KindRateLimited))

	_, err = f.svc.Reserve(context.Background(), tt.ID, "10.0.0.2", ReserveRequest{})
	assert.NoError(t, err)
	assert.Equal(t, 3, f.repo.get(tt.ID).QuotaReserved)
}

func TestCreateTicketType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.CreateTicketType(ctx, CreateTicketTypeRequest{
		EditionID:      f.edition.ID.String(),
		Code:           "PASS3J",
		Name:           "Pass 3 jours",
		Price:          120,
		QuotaTotal:     100,
		QuotaByChannel: ChannelMap{"online": 80, "partner": 20},
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", resp.Currency)
	assert.Equal(t, 20.0, resp.VATRate)
	assert.Equal(t, PhaseRegular, resp.Phase)
	assert.True(t, resp.IsActive)
	assert.True(t, resp.IsOnSale)
	assert.Equal(t, 20.0, resp.PriceVAT)
	assert.Equal(t, 100.0, resp.PriceNet)
	assert.Empty(t, f.pub.types())

	_, err = f.svc.CreateTicketType(ctx, CreateTicketTypeRequest{
		EditionID: f.edition.ID.String(), Code: "PASS3J", Name: "dup", QuotaTotal: 1,
	})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	cases := map[string]CreateTicketTypeRequest{
		"quota_by_channel": {
			EditionID: f.edition.ID.String(), Code: "OVER", Name: "over", QuotaTotal: 10,
			QuotaByChannel: ChannelMap{"online": 8, "partner": 3},
		},
		"day": {
			EditionID: f.edition.ID.String(), Code: "DAY", Name: "day", QuotaTotal: 10, Day: ptr("2025-07-21"),
		},
		"sale_end": {
			EditionID: f.edition.ID.String(), Code: "WIN", Name: "window", QuotaTotal: 10,
			SaleStart: ptr(fixedNow), SaleEnd: ptr(fixedNow),
		},
	}
	for field, req := range cases {
		_, err := f.svc.CreateTicketType(ctx, req)
		var appErr *apperror.Error
		require.ErrorAs(t, err, &appErr, field)
		assert.Equal(t, field, appErr.Field)
	}

	_, err = f.svc.CreateTicketType(ctx, CreateTicketTypeRequest{
		EditionID: uuid.New().String(), Code: "LOST", Name: "lost", QuotaTotal: 1,
	})
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestUpdateTicketTypeEmitsSaleTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tt := f.onSale("PASS1J", 10, nil)
	tt.IsActive = false
	f.repo.put(tt)

	resp, err := f.svc.UpdateTicketType(ctx, tt.ID, UpdateTicketTypeRequest{IsActive: ptr(true)})
	require.NoError(t, err)
	assert.True(t, resp.IsOnSale)

	_, err = f.svc.UpdateTicketType(ctx, tt.ID, UpdateTicketTypeRequest{Name: ptr("Pass 1 jour")})
	require.NoError(t, err)

	_, err = f.svc.UpdateTicketType(ctx, tt.ID, UpdateTicketTypeRequest{SaleEnd: ptr(fixedNow.Add(-time.Minute))})
	require.NoError(t, err)

	assert.Equal(t, []notifications.EventType{
		notifications.EventTicketSaleOpened,
		notifications.EventTicketSaleClosed,
	}, f.pub.types())

	payload, ok := f.pub.events[1].Payload.(SaleEventPayload)
	require.True(t, ok)
	assert.Equal(t, "PASS1J", payload.Code)
	assert.Equal(t, "Pass 1 jour", payload.Name)
}

func TestUpdateTicketTypeKeepsInvariants(t *testing.T) {
	f := newFixture(t)
	tt := f.onSale("PASS1J", 10, nil)
	_, err := reserve(f, tt.ID, 6, "")
	require.NoError(t, err)

	_, err = f.svc.UpdateTicketType(context.Background(), tt.ID, UpdateTicketTypeRequest{QuotaTotal: ptr(5)})
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "quota_reserved", appErr.Field)
	assert.Equal(t, 10, f.repo.get(tt.ID).QuotaTotal)
}

func TestUpdateTicketTypeRejectsPhaseChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tt := f.onSale("LATE", 10, nil)
	tt.Phase = PhaseLate
	f.repo.put(tt)

	_, err := f.svc.UpdateTicketType(ctx, tt.ID, UpdateTicketTypeRequest{Phase: ptr("early")})
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindValidation, appErr.Kind())
	assert.Equal(t, "phase", appErr.Field)
	assert.Equal(t, PhaseLate, f.repo.get(tt.ID).Phase)

	resp, err := f.svc.UpdateTicketType(ctx, tt.ID, UpdateTicketTypeRequest{Phase: ptr("late"), Name: ptr("Pass tardif")})
	require.NoError(t, err)
	assert.Equal(t, PhaseLate, resp.Phase)

	regular := f.onSale("REGULAR", 10, nil)
	_, err = f.svc.UpdateTicketType(ctx, regular.ID, UpdateTicketTypeRequest{Phase: ptr("late")})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	assert.Equal(t, PhaseRegular, f.repo.get(regular.ID).Phase)
	assert.Empty(t, f.pub.types())
}

func TestDeleteTicketType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tt := f.onSale("PASS1J", 10, nil)

	require.NoError(t, f.svc.DeleteTicketType(ctx, tt.ID))
	_, err := f.svc.GetTicketType(ctx, tt.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	assert.True(t, apperror.IsKind(f.svc.DeleteTicketType(ctx, tt.ID), apperror.KindNotFound))
}

func TestAdvanceIfDueStepsOnePhaseAtATime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tt := f.onSale("EARLY", 100, nil)
	tt.Phase = PhaseEarly
	tt.SaleStart = ptr(fixedNow.AddDate(0, 0, -20))
	tt.QuotaReserved = 95
	f.repo.put(tt)

	transition, err := f.svc.AdvanceIfDue(ctx, tt.ID, fixedNow, DefaultPhaseRules())
	require.NoError(t, err)
	require.NotNil(t, transition)
	assert.Equal(t, PhaseEarly, transition.From)
	assert.Equal(t, PhaseRegular, transition.To)
	assert.Equal(t, PhaseRegular, f.repo.get(tt.ID).Phase)

	transition, err = f.svc.AdvanceIfDue(ctx, tt.ID, fixedNow, DefaultPhaseRules())
	require.NoError(t, err)
	require.NotNil(t, transition)
	assert.Equal(t, PhaseLate, transition.To)

	transition, err = f.svc.AdvanceIfDue(ctx, tt.ID, fixedNow, DefaultPhaseRules())
	require.NoError(t, err)
	assert.Nil(t, transition)
	assert.Equal(t, PhaseLate, f.repo.get(tt.ID).Phase)

	assert.Equal(t, []notifications.EventType{
		notifications.EventTicketPhaseChanged,
		notifications.EventTicketPhaseChanged,
	}, f.pub.types())
}

func TestAdvanceIfDueNotDue(t *testing.T) {
	f := newFixture(t)
	tt := f.onSale("EARLY", 100, nil)
	tt.Phase = PhaseEarly
	tt.SaleStart = ptr(fixedNow.AddDate(0, 0, -3))
	tt.QuotaReserved = 10
	f.repo.put(tt)

	transition, err := f.svc.AdvanceIfDue(context.Background(), tt.ID, fixedNow, DefaultPhaseRules())
	require.NoError(t, err)
	assert.Nil(t, transition)
	assert.Equal(t, PhaseEarly, f.repo.get(tt.ID).Phase)
	assert.Empty(t, f.pub.types())
}

func TestExplicitAdvance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tt := f.onSale("PASS1J", 10, nil)

	transition, err := f.svc.ExplicitAdvance(ctx, tt.ID)
	require.NoError(t, err)
	assert.Equal(t, PhaseRegular, transition.From)
	assert.Equal(t, PhaseLate, transition.To)

	_, err = f.svc.ExplicitAdvance(ctx, tt.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	assert.Equal(t, PhaseLate, f.repo.get(tt.ID).Phase)
}

func TestAdvancePhasesBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := f.onSale("DUE", 100, nil)
	due.Phase = PhaseEarly
	due.SaleStart = ptr(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	f.repo.put(due)

	fresh := f.onSale("FRESH", 100, nil)
	fresh.Phase = PhaseEarly
	fresh.SaleStart = ptr(time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC))
	fresh.QuotaReserved = 50
	f.repo.put(fresh)

	elsewhere := f.onSale("ELSEWHERE", 100, nil)
	elsewhere.EditionID = f.other.ID
	elsewhere.Phase = PhaseEarly
	elsewhere.SaleStart = due.SaleStart
	f.repo.put(elsewhere)

	result, err := f.svc.AdvancePhases(ctx, AdvancePhasesRequest{
		EditionID:     f.edition.ID.String(),
		ReferenceDate: "2025-06-15",
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15", result.ReferenceDate)
	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 1, result.Changed)
	require.Len(t, result.Transitions, 1)
	assert.Equal(t, "DUE", result.Transitions[0].Code)
	assert.Equal(t, PhaseEarly, f.repo.get(elsewhere.ID).Phase)

	result, err = f.svc.AdvancePhases(ctx, AdvancePhasesRequest{
		EditionID:    f.edition.ID.String(),
		RemainingPct: ptr(0.5),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.5, result.Rules.RemainingPct)
	assert.Equal(t, 14, result.Rules.DaysSinceStart)
	assert.Equal(t, 2, result.Changed)
	assert.Equal(t, PhaseRegular, f.repo.get(fresh.ID).Phase)
	assert.Equal(t, PhaseLate, f.repo.get(due.ID).Phase)

	_, err = f.svc.AdvancePhases(ctx, AdvancePhasesRequest{ReferenceDate: "15/06/2025"})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestStatsSummary(t *testing.T) {
	f := newFixture(t)

	a := f.onSale("A", 10, nil)
	a.QuotaReserved = 4
	f.repo.put(a)

	b := f.onSale("B", 2, nil)
	b.Price = 100.5
	b.Phase = PhaseEarly
	b.IsActive = false
	f.repo.put(b)

	c := f.onSale("C", 5, nil)
	c.EditionID = f.other.ID
	f.repo.put(c)

	summary, err := f.svc.StatsSummary(context.Background(), &f.edition.ID)
	require.NoError(t, err)
	assert.Equal(t, f.edition.ID.String(), summary.Edition)
	assert.Equal(t, 2, summary.TotalTypes)
	assert.Equal(t, 1, summary.OnSale)
	assert.Equal(t, 12, summary.QuotaTotal)
	assert.Equal(t, 4, summary.QuotaReserved)
	assert.Equal(t, 8, summary.QuotaRemaining)
	assert.Equal(t, PhaseStats{Count: 1, OnSale: 1}, summary.ByPhase[PhaseRegular])
	assert.Equal(t, PhaseStats{Count: 1, OnSale: 0}, summary.ByPhase[PhaseEarly])
	assert.Equal(t, PhaseStats{}, summary.ByPhase[PhaseLate])
	assert.Equal(t, "561.00", summary.RevenuePotential)

	all, err := f.svc.StatsSummary(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, all.Edition)
	assert.Equal(t, 3, all.TotalTypes)
	assert.Equal(t, "861.00", all.RevenuePotential)
}

func TestOnSaleListingCachedUntilMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f.svc.SetCacheService(cache.NewService(client))

	a := f.onSale("A", 10, nil)
	b := f.onSale("B", 10, nil)

	listing, err := f.svc.OnSaleListing(ctx, &f.edition.ID)
	require.NoError(t, err)
	require.Len(t, listing, 2)

	// a write behind the service's back is not visible until the version moves
	a.IsActive = false
	f.repo.put(a)
	listing, err = f.svc.OnSaleListing(ctx, &f.edition.ID)
	require.NoError(t, err)
	assert.Len(t, listing, 2)

	_, err = reserve(f, b.ID, 1, "")
	require.NoError(t, err)

	listing, err = f.svc.OnSaleListing(ctx, &f.edition.ID)
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, "B", listing[0].Code)
	assert.Equal(t, 9, listing[0].QuotaRemaining)

	all, err := f.svc.OnSaleListing(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCheckRateLimitSurfacesLimiterFailure(t *testing.T) {
	f := newFixture(t)
	f.svc.SetRateLimiter(failingLimiter{})
	tt := f.onSale("PASS1J", 10, nil)

	_, err := reserve(f, tt.ID, 1, "")
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	assert.Equal(t, int64(0), f.repo.lockCalls.Load())
}

type failingLimiter struct{}

func (failingLimiter) IsAllowed(context.Context, string, ratelimit.RateLimitType) (*ratelimit.Result, error) {
	return nil, errors.New("redis unavailable")
}
