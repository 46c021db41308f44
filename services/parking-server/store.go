package main

import (
	"context"
)

// StateWriter je zapisovací cesta úložiště, kterou používá Ingress.
// Každé volání je atomické: záznam je buď celý viditelný pro čtení, nebo vůbec.
type StateWriter interface {
	// RecordSpaceState uloží nový stav místa. Neznámé místo -> ErrUnknownSpace.
	RecordSpaceState(ctx context.Context, lotID int64, spaceName string, state SpaceState) (SpaceStateRecord, error)

	// RecordLotEvent uloží vjezd/výjezd. Neznámé parkoviště -> ErrUnknownLot.
	RecordLotEvent(ctx context.Context, lotID int64, kind EntranceKind) (LotEvent, error)
}

// SnapshotReader je čtecí cesta. Každé čtení je konzistentní k okamžiku volání,
// mezi dvěma voláními žádná transakce neplatí.
type SnapshotReader interface {
	ListLots(ctx context.Context) ([]ParkingLot, error)
	GetLot(ctx context.Context, lotID int64) (ParkingLot, error)
	ListSpaces(ctx context.Context, lotID int64) ([]ParkingSpace, error)

	// CurrentSpaceStates vrací pro každé místo parkoviště poslední záznam.
	// Místo bez historie má v mapě hodnotu nil (stav neznámý).
	CurrentSpaceStates(ctx context.Context, lotID int64) (map[int64]*SpaceStateRecord, error)

	// CountEvents spočítá řádky LotEvent daného typu. Žádné ručně držené počítadlo.
	CountEvents(ctx context.Context, lotID int64, kind EntranceKind) (int64, error)
}

// Store je kompletní úložiště (PostgresStore nebo MemoryStore).
type Store interface {
	StateWriter
	SnapshotReader
	Close()
}
