package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// pgForeignKeyViolation je SQLSTATE pro porušení cizího klíče.
const pgForeignKeyViolation = "23503"

// PostgresStore zapouzdřuje práci s Postgres.
// Zbytek aplikace neví, jak se píše SQL, jen volá metody úložiště.
type PostgresStore struct {
	pool *pgxpool.Pool // Pool spojení, je thread-safe
}

// NewPostgresStore vytvoří pool a ověří spojení (Ping).
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chyba konfigurace DB: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("DB není dostupná: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate vytvoří tabulky, pokud ještě neexistují.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrace schématu selhala: %w", err)
	}
	return nil
}

// Close uzavře pool při ukončení aplikace.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// RecordSpaceState dohledá místo a zapíše záznam historie v JEDNÉ transakci.
// Dokud transakce necommitne, záznam nikdo nevidí.
func (s *PostgresStore) RecordSpaceState(ctx context.Context, lotID int64, spaceName string, state SpaceState) (SpaceStateRecord, error) {
	var rec SpaceStateRecord

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var spaceID int64
		err := tx.QueryRow(ctx,
			`SELECT id FROM parking_spaces WHERE parking_lot_id = $1 AND name = $2`,
			lotID, spaceName,
		).Scan(&spaceID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: lot %d, místo %q", ErrUnknownSpace, lotID, spaceName)
		}
		if err != nil {
			return err
		}

		var stored string
		err = tx.QueryRow(ctx,
			`INSERT INTO parking_space_history (parking_space_id, state)
			 VALUES ($1, $2)
			 RETURNING id, parking_space_id, state, created_at`,
			spaceID, string(state),
		).Scan(&rec.ID, &rec.SpaceID, &stored, &rec.CreatedAt)
		rec.State = SpaceState(stored)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUnknownSpace) {
			return SpaceStateRecord{}, err
		}
		return SpaceStateRecord{}, fmt.Errorf("%w: insert historie místa: %w", ErrDurableWrite, err)
	}
	return rec, nil
}

// RecordLotEvent zapíše vjezd/výjezd. Neexistující parkoviště odhalí cizí klíč.
func (s *PostgresStore) RecordLotEvent(ctx context.Context, lotID int64, kind EntranceKind) (LotEvent, error) {
	var ev LotEvent

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var stored string
		err := tx.QueryRow(ctx,
			`INSERT INTO parking_lot_events (parking_lot_id, kind)
			 VALUES ($1, $2)
			 RETURNING id, parking_lot_id, kind, created_at`,
			lotID, string(kind),
		).Scan(&ev.ID, &ev.LotID, &stored, &ev.CreatedAt)
		ev.Kind = EntranceKind(stored)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return LotEvent{}, fmt.Errorf("%w: lot %d", ErrUnknownLot, lotID)
		}
		return LotEvent{}, fmt.Errorf("%w: insert události parkoviště: %w", ErrDurableWrite, err)
	}
	return ev, nil
}

func (s *PostgresStore) ListLots(ctx context.Context) ([]ParkingLot, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, location FROM parking_lots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("selhal SQL dotaz na parkoviště: %w", err)
	}
	defer rows.Close()

	lots := make([]ParkingLot, 0)
	for rows.Next() {
		var l ParkingLot
		if err := rows.Scan(&l.ID, &l.Name, &l.Location); err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

func (s *PostgresStore) GetLot(ctx context.Context, lotID int64) (ParkingLot, error) {
	var l ParkingLot
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, location FROM parking_lots WHERE id = $1`, lotID,
	).Scan(&l.ID, &l.Name, &l.Location)
	if errors.Is(err, pgx.ErrNoRows) {
		return ParkingLot{}, fmt.Errorf("%w: lot %d", ErrUnknownLot, lotID)
	}
	if err != nil {
		return ParkingLot{}, fmt.Errorf("chyba načtení parkoviště: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) ListSpaces(ctx context.Context, lotID int64) ([]ParkingSpace, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, parking_lot_id, name FROM parking_spaces WHERE parking_lot_id = $1 ORDER BY id`, lotID)
	if err != nil {
		return nil, fmt.Errorf("selhal SQL dotaz na místa: %w", err)
	}
	defer rows.Close()

	spaces := make([]ParkingSpace, 0)
	for rows.Next() {
		var sp ParkingSpace
		if err := rows.Scan(&sp.ID, &sp.LotID, &sp.Name); err != nil {
			return nil, err
		}
		spaces = append(spaces, sp)
	}
	return spaces, rows.Err()
}

// CurrentSpaceStates: DISTINCT ON vybere pro každé místo nejnovější řádek historie.
// LEFT JOIN zajistí, že místa bez historie v mapě jsou (s hodnotou nil).
func (s *PostgresStore) CurrentSpaceStates(ctx context.Context, lotID int64) (map[int64]*SpaceStateRecord, error) {
	query := `
		SELECT DISTINCT ON (s.id) s.id, h.id, h.state, h.created_at
		FROM parking_spaces s
		LEFT JOIN parking_space_history h ON h.parking_space_id = s.id
		WHERE s.parking_lot_id = $1
		ORDER BY s.id, h.created_at DESC NULLS LAST, h.id DESC NULLS LAST
	`
	rows, err := s.pool.Query(ctx, query, lotID)
	if err != nil {
		return nil, fmt.Errorf("chyba načítání stavů míst: %w", err)
	}
	defer rows.Close()

	states := make(map[int64]*SpaceStateRecord)
	for rows.Next() {
		var (
			spaceID   int64
			recID     *int64
			state     *string
			createdAt *time.Time
		)
		if err := rows.Scan(&spaceID, &recID, &state, &createdAt); err != nil {
			return nil, err
		}
		// Místo bez historie: LEFT JOIN vrátí NULL ve všech sloupcích h.*
		if recID == nil {
			states[spaceID] = nil
			continue
		}
		states[spaceID] = &SpaceStateRecord{
			ID:        *recID,
			SpaceID:   spaceID,
			State:     SpaceState(*state),
			CreatedAt: *createdAt,
		}
	}
	return states, rows.Err()
}

func (s *PostgresStore) CountEvents(ctx context.Context, lotID int64, kind EntranceKind) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM parking_lot_events WHERE parking_lot_id = $1 AND kind = $2`,
		lotID, string(kind),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("chyba počítání událostí: %w", err)
	}
	return n, nil
}
