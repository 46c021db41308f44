package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// forcedReloadGap: nejkratší odstup dvou vynucených obnovení při "cache miss".
// Brání tomu, aby záplava zpráv s neexistujícím místem zahltila DB.
const forcedReloadGap = 5 * time.Second

// Directory je cache číselníku parkovišť a míst: (lotId, jméno místa) -> ID místa.
// Data spravuje někdo jiný (seed, admin), server je jen čte.
type Directory struct {
	reader SnapshotReader
	logger *slog.Logger

	// mu chrání obě mapy. Zápis = jen výměna pointerů (read-copy-update).
	mu     sync.RWMutex
	lots   map[int64]struct{}
	spaces map[spaceKey]int64

	reloadMu   sync.Mutex
	lastReload time.Time
	now        func() time.Time
}

func NewDirectory(reader SnapshotReader, logger *slog.Logger) *Directory {
	return &Directory{
		reader: reader,
		logger: logger,
		lots:   make(map[int64]struct{}),
		spaces: make(map[spaceKey]int64),
		now:    time.Now,
	}
}

// Load načte celý číselník z úložiště a atomicky vymění cache.
func (d *Directory) Load(ctx context.Context) error {
	lots, err := d.reader.ListLots(ctx)
	if err != nil {
		return fmt.Errorf("načtení parkovišť: %w", err)
	}

	// Nová mapa bokem, abychom nedrželi zámek po dobu dotazů do DB.
	newLots := make(map[int64]struct{}, len(lots))
	newSpaces := make(map[spaceKey]int64)
	for _, lot := range lots {
		newLots[lot.ID] = struct{}{}
		spaces, err := d.reader.ListSpaces(ctx, lot.ID)
		if err != nil {
			return fmt.Errorf("načtení míst parkoviště %d: %w", lot.ID, err)
		}
		for _, sp := range spaces {
			newSpaces[spaceKey{lot.ID, sp.Name}] = sp.ID
		}
	}

	d.mu.Lock()
	d.lots = newLots
	d.spaces = newSpaces
	d.mu.Unlock()

	d.reloadMu.Lock()
	d.lastReload = d.now()
	d.reloadMu.Unlock()

	d.logger.Debug("Číselník parkovišť načten", "lots", len(newLots), "spaces", len(newSpaces))
	return nil
}

func (d *Directory) lookupSpace(lotID int64, name string) (int64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.spaces[spaceKey{lotID, name}]
	return id, ok
}

func (d *Directory) hasLot(lotID int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.lots[lotID]
	return ok
}

// reloadOnMiss obnoví cache, pokud poslední obnovení je starší než forcedReloadGap.
func (d *Directory) reloadOnMiss(ctx context.Context) {
	d.reloadMu.Lock()
	due := d.now().Sub(d.lastReload) >= forcedReloadGap
	if due {
		// Rezervace slotu, ať souběžné miss nespustí další reload.
		d.lastReload = d.now()
	}
	d.reloadMu.Unlock()

	if !due {
		return
	}
	if err := d.Load(ctx); err != nil {
		d.logger.Error("Vynucené obnovení číselníku selhalo", "error", err)
	}
}

// ResolveSpace vrací ID místa. Při miss zkusí (omezeně) obnovit cache.
func (d *Directory) ResolveSpace(ctx context.Context, lotID int64, name string) (int64, error) {
	if id, ok := d.lookupSpace(lotID, name); ok {
		return id, nil
	}
	d.reloadOnMiss(ctx)
	if id, ok := d.lookupSpace(lotID, name); ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: lot %d, místo %q", ErrUnknownSpace, lotID, name)
}

// CheckLot ověří existenci parkoviště stejným způsobem.
func (d *Directory) CheckLot(ctx context.Context, lotID int64) error {
	if d.hasLot(lotID) {
		return nil
	}
	d.reloadOnMiss(ctx)
	if d.hasLot(lotID) {
		return nil
	}
	return fmt.Errorf("%w: lot %d", ErrUnknownLot, lotID)
}

// SpaceCount vrací počet míst parkoviště podle cache.
func (d *Directory) SpaceCount(lotID int64) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for k := range d.spaces {
		if k.lotID == lotID {
			n++
		}
	}
	return n
}

// StartAutoRefresh obnovuje cache v intervalu, dokud neskončí ctx.
// Nové místo v DB se tak projeví bez restartu serveru.
func (d *Directory) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Load(ctx); err != nil {
				d.logger.Error("Failed to auto-refresh directory", "error", err)
			}
		}
	}
}
