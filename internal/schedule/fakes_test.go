package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"festival/internal/editions"
	"festival/internal/notifications"
	"festival/internal/shared/apperror"

	"github.com/google/uuid"
)

type fakeEditions struct {
	editions map[uuid.UUID]*editions.Edition
	stages   map[uuid.UUID]*editions.Stage
	artists  map[uuid.UUID]*editions.Artist
}

func newFakeEditions() *fakeEditions {
	return &fakeEditions{
		editions: map[uuid.UUID]*editions.Edition{},
		stages:   map[uuid.UUID]*editions.Stage{},
		artists:  map[uuid.UUID]*editions.Artist{},
	}
}

func (f *fakeEditions) addEdition(year int, start, end string) *editions.Edition {
	e := &editions.Edition{ID: uuid.New(), Year: year, StartDate: mustDate(start), EndDate: mustDate(end)}
	f.editions[e.ID] = e
	return e
}

func (f *fakeEditions) addStage(name string) *editions.Stage {
	s := &editions.Stage{ID: uuid.New(), Name: name}
	f.stages[s.ID] = s
	return s
}

func (f *fakeEditions) addEditionStage(name string, edition *editions.Edition) *editions.Stage {
	s := f.addStage(name)
	s.EditionID = &edition.ID
	return s
}

func (f *fakeEditions) addArtist(name string) *editions.Artist {
	a := &editions.Artist{ID: uuid.New(), Name: name}
	f.artists[a.ID] = a
	return a
}

func (f *fakeEditions) GetEdition(_ context.Context, id uuid.UUID) (*editions.Edition, error) {
	if e, ok := f.editions[id]; ok {
		return e, nil
	}
	return nil, apperror.NotFound("edition")
}

func (f *fakeEditions) GetEditionByYear(_ context.Context, year int) (*editions.Edition, error) {
	for _, e := range f.editions {
		if e.Year == year {
			return e, nil
		}
	}
	return nil, apperror.NotFound("edition")
}

func (f *fakeEditions) GetStage(_ context.Context, id uuid.UUID) (*editions.Stage, error) {
	if s, ok := f.stages[id]; ok {
		return s, nil
	}
	return nil, apperror.NotFound("stage")
}

func (f *fakeEditions) GetArtist(_ context.Context, id uuid.UUID) (*editions.Artist, error) {
	if a, ok := f.artists[id]; ok {
		return a, nil
	}
	return nil, apperror.NotFound("artist")
}

func (f *fakeEditions) StageNames(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := map[uuid.UUID]string{}
	for _, id := range ids {
		if s, ok := f.stages[id]; ok {
			names[id] = s.Name
		}
	}
	return names, nil
}

func (f *fakeEditions) ArtistNames(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := map[uuid.UUID]string{}
	for _, id := range ids {
		if a, ok := f.artists[id]; ok {
			names[id] = a.Name
		}
	}
	return names, nil
}

func (f *fakeEditions) CreateEdition(_ context.Context, e *editions.Edition) error {
	f.editions[e.ID] = e
	return nil
}

func (f *fakeEditions) CreateStage(_ context.Context, s *editions.Stage) error {
	f.stages[s.ID] = s
	return nil
}

func (f *fakeEditions) CreateArtist(_ context.Context, a *editions.Artist) error {
	f.artists[a.ID] = a
	return nil
}

// memRepo keeps slots in memory; WithPartitionLock serializes per partition
// the way the advisory lock does.
type memRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]Slot

	locksMu sync.Mutex
	locks   map[PartitionKey]*sync.Mutex
}

func newMemRepo() *memRepo {
	return &memRepo{slots: map[uuid.UUID]Slot{}, locks: map[PartitionKey]*sync.Mutex{}}
}

func (r *memRepo) WithPartitionLock(_ context.Context, key PartitionKey, fn func(tx Repository) error) error {
	r.locksMu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	r.locksMu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(r)
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, apperror.NotFound("slot")
	}
	return &s, nil
}

func (r *memRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return r.GetByID(ctx, id)
}

func (r *memRepo) ListPartition(_ context.Context, key PartitionKey) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Slot
	for _, s := range r.slots {
		if s.Partition() == key && s.Status.IsActive() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (r *memRepo) ListByEdition(_ context.Context, editionID uuid.UUID) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Slot
	for _, s := range r.slots {
		if s.EditionID == editionID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.Before(out[j].Day)
		}
		if out[i].StageID != out[j].StageID {
			return out[i].StageID.String() < out[j].StageID.String()
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (r *memRepo) ExistsDuplicate(_ context.Context, key PartitionKey, start TimeOfDay, artistID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slots {
		if s.Partition() == key && s.StartTime == start && s.ArtistID == artistID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) Create(_ context.Context, slot *Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	slot.Day = editions.DateOf(slot.Day)
	slot.CreatedAt = time.Now().UTC()
	slot.UpdatedAt = slot.CreatedAt
	r.slots[slot.ID] = *slot
	return nil
}

func (r *memRepo) Save(_ context.Context, slot *Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot.Day = editions.DateOf(slot.Day)
	slot.UpdatedAt = time.Now().UTC()
	r.slots[slot.ID] = *slot
	return nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
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
