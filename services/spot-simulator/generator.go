package main

import (
	"fmt"
	"math/rand/v2"
)

// LotRoster = parkoviště a jména jeho míst.
type LotRoster struct {
	LotID  int64
	Spaces []string
}

// Roster je vše, o čem simulátor smí posílat zprávy.
type Roster []LotRoster

// Generator vyrábí náhodné payloady ve formátu, který čte ingest serveru.
// Není bezpečný pro souběžné použití (volá ho jen hlavní smyčka).
type Generator struct {
	rnd *rand.Rand
}

func NewGenerator(seed uint64) *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// SpotState vrací "<lotId>|<místo>|<OCCUPIED|FREE>". ok=false, pokud nemáme žádné místo.
func (g *Generator) SpotState(r Roster) (string, bool) {
	var withSpaces []LotRoster
	for _, l := range r {
		if len(l.Spaces) > 0 {
			withSpaces = append(withSpaces, l)
		}
	}
	if len(withSpaces) == 0 {
		return "", false
	}
	lot := withSpaces[g.rnd.IntN(len(withSpaces))]
	space := lot.Spaces[g.rnd.IntN(len(lot.Spaces))]
	state := "OCCUPIED"
	if g.rnd.IntN(2) == 1 {
		state = "FREE"
	}
	return fmt.Sprintf("%d|%s|%s", lot.LotID, space, state), true
}

// LotEvent vrací "<lotId>|<ENTRY|DEPARTURE>".
func (g *Generator) LotEvent(r Roster) (string, bool) {
	if len(r) == 0 {
		return "", false
	}
	lot := r[g.rnd.IntN(len(r))]
	kind := "ENTRY"
	if g.rnd.IntN(2) == 1 {
		kind = "DEPARTURE"
	}
	return fmt.Sprintf("%d|%s", lot.LotID, kind), true
}
