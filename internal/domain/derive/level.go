package derive

import (
	"github.com/okian/ssr3bridge/internal/domain/catalog"
	"github.com/okian/ssr3bridge/internal/domain/levellock"
	"github.com/okian/ssr3bridge/internal/domain/noiselevel"
)

// EffectiveLevel returns the locked finalize level: the captured rate looked
// up with the current rezon access level as modifier. It reports false
// unless the latch is locked.
func EffectiveLevel(src Source, latch levellock.State, cat catalog.Catalog, layout Layout) (int, bool) {
	if latch.Phase() != levellock.Locked {
		return 0, false
	}
	mod := MergeRezon(src, cat, layout).AccessLv
	return noiselevel.Lookup(latch.CapturedRate, mod), true
}

// FreeRunningLevel is the level the live intensity register maps to, for
// callers to show while nothing is locked.
func FreeRunningLevel(src Source, cat catalog.Catalog, layout Layout) int {
	raw, _ := number(src, layout.Intensity)
	mod := MergeRezon(src, cat, layout).AccessLv
	return noiselevel.Lookup(raw/levellock.Divisor, mod)
}
