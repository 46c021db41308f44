package main

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore je úložiště v paměti se stejným kontraktem jako PostgresStore.
// Slouží pro STORE_BACKEND=memory (demo bez DB) a pro testy.
// Jeden zámek = každý zápis je atomický vůči čtení.
type MemoryStore struct {
	mu sync.RWMutex

	lots   map[int64]ParkingLot
	spaces map[int64]ParkingSpace
	// (lot, jméno) -> ID místa
	byName map[spaceKey]int64
	// ID místa -> append-only historie
	history map[int64][]SpaceStateRecord
	// ID parkoviště -> append-only log vjezdů/výjezdů
	events map[int64][]LotEvent
	// Samostatné sekvence ID pro každou "tabulku", stejně jako SERIAL v DB.
	seq [4]int64
	now func() time.Time
}

const (
	seqLot = iota
	seqSpace
	seqRecord
	seqEvent
)

func (m *MemoryStore) nextID(table int) int64 {
	m.seq[table]++
	return m.seq[table]
}

type spaceKey struct {
	lotID int64
	name  string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lots:    make(map[int64]ParkingLot),
		spaces:  make(map[int64]ParkingSpace),
		byName:  make(map[spaceKey]int64),
		history: make(map[int64][]SpaceStateRecord),
		events:  make(map[int64][]LotEvent),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AddLot založí parkoviště s místy. Vrací ho včetně přidělených ID.
func (m *MemoryStore) AddLot(name, location string, spaceNames ...string) (ParkingLot, []ParkingSpace) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lot := ParkingLot{ID: m.nextID(seqLot), Name: name, Location: location}
	m.lots[lot.ID] = lot

	spaces := make([]ParkingSpace, 0, len(spaceNames))
	for _, n := range spaceNames {
		sp := ParkingSpace{ID: m.nextID(seqSpace), LotID: lot.ID, Name: n}
		m.spaces[sp.ID] = sp
		m.byName[spaceKey{lot.ID, n}] = sp.ID
		spaces = append(spaces, sp)
	}
	return lot, spaces
}

// SeedDemo naplní úložiště dvěma ukázkovými parkovišti (stejná data jako seed DB).
func (m *MemoryStore) SeedDemo() {
	m.AddLot("Fake Parking Model IoT", "Heraklion", "A1", "A2")
	m.AddLot("Example Parking Lot", "Heraklion", "A1", "A2", "A3", "A4", "B1", "B2", "B3", "B4")
}

func (m *MemoryStore) Close() {}

// stamp vrací čas zápisu, nikdy menší než předchozí (historie zůstane seřazená).
// Volat jen pod zámkem.
func (m *MemoryStore) stamp(prev []SpaceStateRecord) time.Time {
	t := m.now()
	if n := len(prev); n > 0 && t.Before(prev[n-1].CreatedAt) {
		t = prev[n-1].CreatedAt
	}
	return t
}

func (m *MemoryStore) RecordSpaceState(ctx context.Context, lotID int64, spaceName string, state SpaceState) (SpaceStateRecord, error) {
	if err := ctx.Err(); err != nil {
		return SpaceStateRecord{}, fmt.Errorf("%w: %w", ErrDurableWrite, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	spaceID, ok := m.byName[spaceKey{lotID, spaceName}]
	if !ok {
		return SpaceStateRecord{}, fmt.Errorf("%w: lot %d, místo %q", ErrUnknownSpace, lotID, spaceName)
	}

	rec := SpaceStateRecord{
		ID:        m.nextID(seqRecord),
		SpaceID:   spaceID,
		State:     state,
		CreatedAt: m.stamp(m.history[spaceID]),
	}
	m.history[spaceID] = append(m.history[spaceID], rec)
	return rec, nil
}

func (m *MemoryStore) RecordLotEvent(ctx context.Context, lotID int64, kind EntranceKind) (LotEvent, error) {
	if err := ctx.Err(); err != nil {
		return LotEvent{}, fmt.Errorf("%w: %w", ErrDurableWrite, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lots[lotID]; !ok {
		return LotEvent{}, fmt.Errorf("%w: lot %d", ErrUnknownLot, lotID)
	}

	ev := LotEvent{ID: m.nextID(seqEvent), LotID: lotID, Kind: kind, CreatedAt: m.now()}
	m.events[lotID] = append(m.events[lotID], ev)
	return ev, nil
}

func (m *MemoryStore) ListLots(ctx context.Context) ([]ParkingLot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lots := make([]ParkingLot, 0, len(m.lots))
	for _, l := range m.lots {
		lots = append(lots, l)
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].ID < lots[j].ID })
	return lots, nil
}

func (m *MemoryStore) GetLot(ctx context.Context, lotID int64) (ParkingLot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.lots[lotID]
	if !ok {
		return ParkingLot{}, fmt.Errorf("%w: lot %d", ErrUnknownLot, lotID)
	}
	return l, nil
}

func (m *MemoryStore) ListSpaces(ctx context.Context, lotID int64) ([]ParkingSpace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	spaces := make([]ParkingSpace, 0)
	for _, sp := range m.spaces {
		if sp.LotID == lotID {
			spaces = append(spaces, sp)
		}
	}
	sort.Slice(spaces, func(i, j int) bool { return spaces[i].ID < spaces[j].ID })
	return spaces, nil
}

func (m *MemoryStore) CurrentSpaceStates(ctx context.Context, lotID int64) (map[int64]*SpaceStateRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[int64]*SpaceStateRecord)
	for id, sp := range m.spaces {
		if sp.LotID != lotID {
			continue
		}
		h := m.history[id]
		if len(h) == 0 {
			states[id] = nil
			continue
		}
		latest := h[len(h)-1]
		states[id] = &latest
	}
	return states, nil
}

func (m *MemoryStore) CountEvents(ctx context.Context, lotID int64, kind EntranceKind) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, ev := range m.events[lotID] {
		if ev.Kind == kind {
			n++
		}
	}
	return n, nil
}
