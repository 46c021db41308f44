package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// LotDTO je položka z GET /parking-lots.
type LotDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// LotDetailDTO je podmnožina GET /parking-lots/{id}, kterou simulátor potřebuje.
type LotDetailDTO struct {
	ID            int64 `json:"id"`
	ParkingSpaces []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"parkingSpaces"`
}

// APIClient zapouzdřuje HTTP volání na snapshot API serveru.
type APIClient struct {
	BaseURL    string
	httpClient *http.Client
}

// NewAPIClient vytváří klienta. Timeout nastavujeme vždy, výchozí http.Client žádný nemá.
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		BaseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *APIClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chyba sítě při volání API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API vrátilo chybný status %d pro %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("chyba při parsování JSONu: %w", err)
	}
	return nil
}

// ListLots: GET /parking-lots
func (c *APIClient) ListLots(ctx context.Context) ([]LotDTO, error) {
	var lots []LotDTO
	if err := c.getJSON(ctx, "/parking-lots", &lots); err != nil {
		return nil, err
	}
	return lots, nil
}

// GetLot: GET /parking-lots/{id}
func (c *APIClient) GetLot(ctx context.Context, id int64) (LotDetailDTO, error) {
	var lot LotDetailDTO
	err := c.getJSON(ctx, fmt.Sprintf("/parking-lots/%d", id), &lot)
	return lot, err
}

// FetchRoster stáhne všechna parkoviště a jména jejich míst.
func (c *APIClient) FetchRoster(ctx context.Context) (Roster, error) {
	lots, err := c.ListLots(ctx)
	if err != nil {
		return nil, err
	}
	roster := make(Roster, 0, len(lots))
	for _, l := range lots {
		detail, err := c.GetLot(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		entry := LotRoster{LotID: l.ID}
		for _, sp := range detail.ParkingSpaces {
			entry.Spaces = append(entry.Spaces, sp.Name)
		}
		roster = append(roster, entry)
	}
	return roster, nil
}
