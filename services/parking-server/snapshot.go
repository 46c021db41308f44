package main

import (
	"context"
	"fmt"
	"log/slog"
)

// OccupancyCache je čtecí strana živé cache (LiveCache).
type OccupancyCache interface {
	SpaceStates(ctx context.Context, lotID int64) (map[int64]SpaceState, bool, error)
	Fill(ctx context.Context, lotID int64, states map[int64]SpaceState) error
}

// SnapshotService odpovídá na dotazy "jak to vypadá teď".
// Jen čte, nikdy nezapisuje do úložiště.
type SnapshotService struct {
	reader SnapshotReader
	cache  OccupancyCache // nil = vždy z úložiště
	logger *slog.Logger
}

func NewSnapshotService(reader SnapshotReader, cache OccupancyCache, logger *slog.Logger) *SnapshotService {
	return &SnapshotService{reader: reader, cache: cache, logger: logger}
}

func (s *SnapshotService) ListLots(ctx context.Context) ([]ParkingLot, error) {
	return s.reader.ListLots(ctx)
}

// LotDetail vrací parkoviště s počítadly a posledním záznamem každého místa.
// Počítadla jsou COUNT nad logem událostí, ne uložená čísla.
func (s *SnapshotService) LotDetail(ctx context.Context, lotID int64) (LotDetail, error) {
	lot, err := s.reader.GetLot(ctx, lotID)
	if err != nil {
		return LotDetail{}, err
	}

	entries, err := s.reader.CountEvents(ctx, lotID, KindEntry)
	if err != nil {
		return LotDetail{}, err
	}
	departures, err := s.reader.CountEvents(ctx, lotID, KindDeparture)
	if err != nil {
		return LotDetail{}, err
	}

	spaces, err := s.reader.ListSpaces(ctx, lotID)
	if err != nil {
		return LotDetail{}, err
	}
	states, err := s.reader.CurrentSpaceStates(ctx, lotID)
	if err != nil {
		return LotDetail{}, err
	}

	detail := LotDetail{
		ParkingLot:    lot,
		Entries:       entries,
		Departures:    departures,
		ParkingSpaces: make([]SpaceSnapshot, 0, len(spaces)),
	}
	for _, sp := range spaces {
		snap := SpaceSnapshot{ParkingSpace: sp, History: []SpaceStateRecord{}}
		if rec := states[sp.ID]; rec != nil {
			snap.History = append(snap.History, *rec)
		}
		detail.ParkingSpaces = append(detail.ParkingSpaces, snap)
	}
	return detail, nil
}

// Occupancy spočítá obsazená/volná/neznámá místa. Nejdřív zkusí Valkey,
// při miss (nebo chybě) čte z úložiště a cache doplní.
func (s *SnapshotService) Occupancy(ctx context.Context, lotID int64) (Occupancy, error) {
	if _, err := s.reader.GetLot(ctx, lotID); err != nil {
		return Occupancy{}, err
	}
	spaces, err := s.reader.ListSpaces(ctx, lotID)
	if err != nil {
		return Occupancy{}, err
	}

	if s.cache != nil {
		cached, ok, err := s.cache.SpaceStates(ctx, lotID)
		if err != nil {
			s.logger.Warn("Živá cache nedostupná, čtu z úložiště", "lot", lotID, "error", err)
		} else if ok {
			return countOccupancy(lotID, spaces, cached, "cache"), nil
		}
	}

	recs, err := s.reader.CurrentSpaceStates(ctx, lotID)
	if err != nil {
		return Occupancy{}, fmt.Errorf("načtení stavů míst: %w", err)
	}
	states := make(map[int64]SpaceState, len(recs))
	for id, rec := range recs {
		if rec != nil {
			states[id] = rec.State
		}
	}

	if s.cache != nil {
		if err := s.cache.Fill(ctx, lotID, states); err != nil {
			s.logger.Warn("Nepodařilo se naplnit živou cache", "lot", lotID, "error", err)
		}
	}
	return countOccupancy(lotID, spaces, states, "store"), nil
}

func countOccupancy(lotID int64, spaces []ParkingSpace, states map[int64]SpaceState, source string) Occupancy {
	o := Occupancy{LotID: lotID, Source: source}
	for _, sp := range spaces {
		switch states[sp.ID] {
		case StateOccupied:
			o.Occupied++
		case StateFree:
			o.Free++
		default:
			o.Unknown++
		}
	}
	return o
}
