package main

import "errors"

// Chyby zpracování. Volající je rozlišuje přes errors.Is, nikdy podle textu.
// Žádná z nich nesmí ukončit proces: zpráva se zahodí, subscriber se odpojí.
var (
	// ErrMalformedMessage: payload z MQTT nejde rozparsovat. Zahodit, neopakovat.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrUnknownSpace: dvojice (lotId, spaceName) v DB neexistuje. Zahodit, neopakovat.
	ErrUnknownSpace = errors.New("unknown parking space")

	// ErrUnknownLot: parkoviště v DB neexistuje. Zahodit, neopakovat.
	ErrUnknownLot = errors.New("unknown parking lot")

	// ErrDurableWrite: zápis do úložiště selhal. Publikace se NEPROVEDE, zpráva je ztracená.
	ErrDurableWrite = errors.New("durable write failed")

	// ErrSubscriberUnreachable: zápis k jednomu klientovi selhal. Týká se jen jeho.
	ErrSubscriberUnreachable = errors.New("subscriber unreachable")
)

// isDropped říká, zda je chyba "očekávaná" (špatný vstup), tedy stačí Warn log.
func isDropped(err error) bool {
	return errors.Is(err, ErrMalformedMessage) ||
		errors.Is(err, ErrUnknownSpace) ||
		errors.Is(err, ErrUnknownLot)
}
