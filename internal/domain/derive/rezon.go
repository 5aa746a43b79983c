package derive

import (
	"github.com/okian/ssr3bridge/internal/domain/catalog"
)

// RezonTotals is the merged effect of every equipped rezon card.
type RezonTotals struct {
	Name         *string        `json:"name"`
	ChargeShot   *string        `json:"chargeShot"`
	FField       *string        `json:"fField"`
	FBarrier     *string        `json:"fBarrier"`
	AccessLv     int            `json:"accessLv"`
	FinalizeTurn int            `json:"finalizeTurn"`
	AttackStar   map[string]int `json:"attackStar"`
	// Slots whose value matched a catalog entry, in merge order.
	Sources []string `json:"sources"`
}

// MergeEntries folds entries in order: counters add, non-nil overrides replace.
func MergeEntries(entries []catalog.Rezon) RezonTotals {
	t := RezonTotals{AttackStar: map[string]int{}}
	for _, e := range entries {
		t.add(e)
	}
	return t
}

func (t *RezonTotals) add(e catalog.Rezon) {
	t.AccessLv += e.AccessLv
	t.FinalizeTurn += e.FinalizeTurn
	for attr, n := range e.AttackStar {
		t.AttackStar[attr] += n
	}
	if e.Name != nil {
		t.Name = e.Name
	}
	if e.ChargeShot != nil {
		t.ChargeShot = e.ChargeShot
	}
	if e.FField != nil {
		t.FField = e.FField
	}
	if e.FBarrier != nil {
		t.FBarrier = e.FBarrier
	}
}

// MergeRezon resolves every rezon slot of layout and merges the matches.
// Absent slots and values without a catalog entry contribute nothing.
func MergeRezon(src Source, cat catalog.Catalog, layout Layout) RezonTotals {
	t := RezonTotals{AttackStar: map[string]int{}, Sources: []string{}}
	for _, slot := range layout.RezonSlots {
		hex, ok := src.Hex(slot)
		if !ok {
			continue
		}
		entry, ok := cat.Rezon(hex)
		if !ok {
			continue
		}
		t.add(entry)
		t.Sources = append(t.Sources, slot)
	}
	return t
}
