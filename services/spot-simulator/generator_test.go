package main

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	spotPayload = regexp.MustCompile(`^(1|2)\|(A1|A2|B1)\|(OCCUPIED|FREE)$`)
	lotPayload  = regexp.MustCompile(`^(1|2|3)\|(ENTRY|DEPARTURE)$`)
)

func TestGenerator_PayloadFormats(t *testing.T) {
	roster := Roster{
		{LotID: 1, Spaces: []string{"A1", "A2"}},
		{LotID: 2, Spaces: []string{"B1"}},
		{LotID: 3},
	}
	g := NewGenerator(42)

	seenStates := map[string]bool{}
	for i := 0; i < 200; i++ {
		p, ok := g.SpotState(roster)
		assert.True(t, ok)
		m := spotPayload.FindStringSubmatch(p)
		if assert.NotNil(t, m, p) {
			seenStates[m[3]] = true
		}

		p, ok = g.LotEvent(roster)
		assert.True(t, ok)
		assert.Regexp(t, lotPayload, p)
	}
	assert.Len(t, seenStates, 2, "oba stavy se musí objevit")
}

func TestGenerator_EmptyRoster(t *testing.T) {
	g := NewGenerator(1)

	_, ok := g.SpotState(nil)
	assert.False(t, ok)
	_, ok = g.SpotState(Roster{{LotID: 1}})
	assert.False(t, ok, "parkoviště bez míst")
	_, ok = g.LotEvent(nil)
	assert.False(t, ok)
}

func TestGenerator_SameSeedSameSequence(t *testing.T) {
	roster := Roster{{LotID: 1, Spaces: []string{"A1", "A2", "A3"}}}
	a, b := NewGenerator(7), NewGenerator(7)
	for i := 0; i < 20; i++ {
		pa, _ := a.SpotState(roster)
		pb, _ := b.SpotState(roster)
		assert.Equal(t, pa, pb)
	}
}
