package main

import (
	"fmt"
	"time"
)

// SpaceState je obsazenost jednoho parkovacího místa.
type SpaceState string

const (
	StateOccupied SpaceState = "OCCUPIED"
	StateFree     SpaceState = "FREE"
)

// ParseSpaceState převede text ze zprávy na SpaceState.
// Přijímáme jen přesné hodnoty, senzory posílají velká písmena.
func ParseSpaceState(s string) (SpaceState, error) {
	switch SpaceState(s) {
	case StateOccupied, StateFree:
		return SpaceState(s), nil
	}
	return "", fmt.Errorf("%w: neznámý stav místa %q", ErrMalformedMessage, s)
}

// EntranceKind je typ průjezdu závorou.
type EntranceKind string

const (
	KindEntry     EntranceKind = "ENTRY"
	KindDeparture EntranceKind = "DEPARTURE"
)

// ParseEntranceKind převede text ze zprávy na EntranceKind.
func ParseEntranceKind(s string) (EntranceKind, error) {
	switch EntranceKind(s) {
	case KindEntry, KindDeparture:
		return EntranceKind(s), nil
	}
	return "", fmt.Errorf("%w: neznámý typ průjezdu %q", ErrMalformedMessage, s)
}

// ParkingLot je parkoviště (statická data, spravuje je někdo jiný než server).
type ParkingLot struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// ParkingSpace je jedno místo na parkovišti. Jméno je unikátní v rámci parkoviště.
type ParkingSpace struct {
	ID    int64  `json:"id"`
	LotID int64  `json:"parkingLotId"`
	Name  string `json:"name"`
}

// SpaceStateRecord je neměnný záznam historie místa.
// Aktuální stav místa = nejnovější záznam podle CreatedAt.
type SpaceStateRecord struct {
	ID        int64      `json:"id"`
	SpaceID   int64      `json:"spaceId"`
	State     SpaceState `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
}

// LotEvent je neměnný záznam vjezdu/výjezdu.
// Počítadla vjezdů a výjezdů se z těchto řádků vždy POČÍTAJÍ, nikdy se neukládají zvlášť.
type LotEvent struct {
	ID        int64        `json:"id"`
	LotID     int64        `json:"lotId"`
	Kind      EntranceKind `json:"kind"`
	CreatedAt time.Time    `json:"createdAt"`
}

// EventType rozlišuje doménové události, které Ingress posílá do Hubu.
type EventType string

const (
	EventSpotState EventType = "SpotState"
	EventLotEvent  EventType = "LotEvent"
)

// DomainEvent je výsledek zpracování jedné zprávy z MQTT (už po zápisu do DB).
type DomainEvent struct {
	Type    EventType
	LotID   int64
	SpaceID int64
	State   SpaceState
	Kind    EntranceKind

	// Record je uložený řádek (*SpaceStateRecord nebo *LotEvent).
	// Přesně tento objekt se serializuje do živého streamu.
	Record any
}

// TopicKey vrací klíč v Hubu, na který se událost publikuje.
func (e DomainEvent) TopicKey() string {
	if e.Type == EventLotEvent {
		return LotEventKey(e.LotID)
	}
	return SpotStateKey(e.LotID)
}

// StreamName je jméno události ve streamu (SSE "event:" řádek), na které poslouchá UI.
func (e DomainEvent) StreamName() string {
	if e.Type == EventLotEvent {
		return fmt.Sprintf("parking-lot/%d", e.LotID)
	}
	return fmt.Sprintf("parking-spot/%d", e.LotID)
}

// SpaceSnapshot je místo s poslední známou hodnotou (History má 0 nebo 1 prvek).
type SpaceSnapshot struct {
	ParkingSpace
	History []SpaceStateRecord `json:"history"`
}

// LotDetail je odpověď GET /parking-lots/{id}.
type LotDetail struct {
	ParkingLot
	Entries       int64           `json:"entries"`
	Departures    int64           `json:"departures"`
	ParkingSpaces []SpaceSnapshot `json:"parkingSpaces"`
}

// Occupancy je rychlý souhrn obsazenosti pro dashboard.
type Occupancy struct {
	LotID    int64  `json:"lotId"`
	Occupied int    `json:"occupied"`
	Free     int    `json:"free"`
	Unknown  int    `json:"unknown"`
	Source   string `json:"source"` // "cache" nebo "store"
}
