package tickets

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"festival/internal/editions"
	"festival/internal/notifications"
	"festival/internal/shared/apperror"

	"github.com/google/uuid"
)

// stubEditions serves GetEdition only; other lookups are unused here
type stubEditions struct {
	editions.Repository
	byID map[uuid.UUID]*editions.Edition
}

func (s stubEditions) GetEdition(_ context.Context, id uuid.UUID) (*editions.Edition, error) {
	if e, ok := s.byID[id]; ok {
		return e, nil
	}
	return nil, apperror.NotFound("edition")
}

// memRepo keeps ticket types in memory. Each row has its own mutex standing
// in for SELECT ... FOR UPDATE; fn works on a copy that is only stored when
// it asks to persist, which mirrors a rollback on error.
type memRepo struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]TicketType
	locks map[uuid.UUID]*sync.Mutex

	lockCalls atomic.Int64
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[uuid.UUID]TicketType{}, locks: map[uuid.UUID]*sync.Mutex{}}
}

func cloneTicketType(t TicketType) TicketType {
	t.SetChannelQuotas(t.ChannelQuotas())
	t.SetChannelReserved(t.ChannelReserved())
	return t
}

func (r *memRepo) rowLock(id uuid.UUID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

func (r *memRepo) WithLockedTicketType(ctx context.Context, id uuid.UUID, fn LockedFunc) error {
	r.lockCalls.Add(1)
	l := r.rowLock(id)
	l.Lock()
	defer l.Unlock()

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	persist, err := fn(current)
	if err != nil || !persist {
		return err
	}

	current.UpdatedAt = time.Now().UTC()
	r.mu.Lock()
	r.rows[id] = cloneTicketType(*current)
	r.mu.Unlock()
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*TicketType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return nil, apperror.NotFound("ticket_type")
	}
	t = cloneTicketType(t)
	return &t, nil
}

func (r *memRepo) List(_ context.Context, filter ListFilter) ([]TicketType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TicketType
	for _, t := range r.rows {
		if filter.EditionID != nil && t.EditionID != *filter.EditionID {
			continue
		}
		out = append(out, cloneTicketType(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memRepo) Create(_ context.Context, tt *TicketType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.EditionID == tt.EditionID && existing.Code == tt.Code {
			return apperror.Validation("code", "already used by another ticket type of this edition")
		}
	}
	if tt.ID == uuid.Nil {
		tt.ID = uuid.New()
	}
	tt.CreatedAt = time.Now().UTC()
	tt.UpdatedAt = tt.CreatedAt
	r.rows[tt.ID] = cloneTicketType(*tt)
	return nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return apperror.NotFound("ticket_type")
	}
	delete(r.rows, id)
	return nil
}

func (r *memRepo) put(t TicketType) TicketType {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	r.mu.Lock()
	r.rows[t.ID] = cloneTicketType(t)
	r.mu.Unlock()
	return t
}

func (r *memRepo) get(id uuid.UUID) *TicketType {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := cloneTicketType(r.rows[id])
	return &t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notifications.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []notifications.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notifications.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func mustDate(s string) time.Time {
	d, err := editions.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr[T any](v T) *T {
	return &v
}
