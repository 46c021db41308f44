package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Mrtvá parkoviště zmizí z cache sama.
	liveCacheTTL = 24 * time.Hour
	// Pole označující, že hash byl kompletně naplněn z úložiště.
	filledField = "_filled"
)

// LiveCache je "Hot Storage" pro dashboard: poslední stav každého místa ve Valkey.
// Zdrojem pravdy zůstává úložiště, cache se jen zrcadlí po úspěšném zápisu.
//
// Klíč: "parking:lot:{lotId}:spaces", hash {spaceId -> OCCUPIED|FREE}.
type LiveCache struct {
	rdb *redis.Client
}

// NewLiveCache připojí Valkey a ověří spojení.
func NewLiveCache(ctx context.Context, addr string) (*LiveCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("Valkey není dostupný: %w", err)
	}
	return &LiveCache{rdb: rdb}, nil
}

func (c *LiveCache) Close() error {
	return c.rdb.Close()
}

func lotSpacesKey(lotID int64) string {
	return fmt.Sprintf("parking:lot:%d:spaces", lotID)
}

// SetSpaceState přepíše poslední hodnotu místa a prodlouží expiraci.
func (c *LiveCache) SetSpaceState(ctx context.Context, lotID int64, rec SpaceStateRecord) error {
	key := lotSpacesKey(lotID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, strconv.FormatInt(rec.SpaceID, 10), string(rec.State))
	pipe.Expire(ctx, key, liveCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("chyba update Valkey: %w", err)
	}
	return nil
}

// Invalidate smaže celý hash parkoviště i se značkou naplnění. Samotné HDEL značky
// nestačí: Fill přes HSETNX by zastaralou hodnotu místa nepřepsal.
func (c *LiveCache) Invalidate(ctx context.Context, lotID int64) error {
	if err := c.rdb.Del(ctx, lotSpacesKey(lotID)).Err(); err != nil {
		return fmt.Errorf("chyba zneplatnění Valkey: %w", err)
	}
	return nil
}

// SpaceStates vrací stavy míst z cache. ok=false, pokud hash nebyl naplněn
// z úložiště (po expiraci může obsahovat jen pár naposledy zapsaných míst).
func (c *LiveCache) SpaceStates(ctx context.Context, lotID int64) (map[int64]SpaceState, bool, error) {
	fields, err := c.rdb.HGetAll(ctx, lotSpacesKey(lotID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("chyba čtení Valkey: %w", err)
	}
	if _, filled := fields[filledField]; !filled {
		return nil, false, nil
	}

	states := make(map[int64]SpaceState, len(fields))
	for f, v := range fields {
		if f == filledField {
			continue
		}
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			continue
		}
		states[id] = SpaceState(v)
	}
	return states, true, nil
}

// Fill naplní cache ze snapshotu úložiště. HSETNX nepřepíše hodnotu,
// kterou mezitím zapsal ingest (ta je novější než náš snapshot).
func (c *LiveCache) Fill(ctx context.Context, lotID int64, states map[int64]SpaceState) error {
	key := lotSpacesKey(lotID)
	pipe := c.rdb.TxPipeline()
	for id, st := range states {
		pipe.HSetNX(ctx, key, strconv.FormatInt(id, 10), string(st))
	}
	pipe.HSet(ctx, key, filledField, "1")
	pipe.Expire(ctx, key, liveCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("chyba plnění Valkey: %w", err)
	}
	return nil
}
