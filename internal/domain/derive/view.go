package derive

import (
	"github.com/okian/ssr3bridge/internal/domain/catalog"
	"github.com/okian/ssr3bridge/internal/domain/levellock"
	"github.com/okian/ssr3bridge/internal/domain/noiselevel"
)

// View bundles every derivation for one snapshot revision.
type View struct {
	Revision         uint64           `json:"revision"`
	Rezon            RezonTotals      `json:"rezon"`
	Hand             HandResult       `json:"hand"`
	Latch            levellock.State  `json:"latch"`
	Phase            string           `json:"phase"`
	EffectiveLevel   *int             `json:"effectiveLevel"`
	FreeRunningLevel int              `json:"freeRunningLevel"`
	Range            noiselevel.Range `json:"range"`
}

// Level returns the effective level when locked, the free-running one otherwise.
func (v View) Level() int {
	if v.EffectiveLevel != nil {
		return *v.EffectiveLevel
	}
	return v.FreeRunningLevel
}

// Compute derives the full view. Revision is left for the caller to set.
func Compute(src Source, latch levellock.State, cat catalog.Catalog, layout Layout) View {
	v := View{
		Rezon:            MergeRezon(src, cat, layout),
		Hand:             NoiseHand(src, cat, layout),
		Latch:            latch,
		Phase:            latch.Phase().String(),
		FreeRunningLevel: FreeRunningLevel(src, cat, layout),
	}
	if lvl, ok := EffectiveLevel(src, latch, cat, layout); ok {
		v.EffectiveLevel = &lvl
	}
	v.Range = noiselevel.RangeForLevel(v.Level())
	return v
}
