// Package noiselevel maps a noise rate to a level between 1 and 12.
package noiselevel

import "math"

// Level bounds.
const (
	MinLevel = 1
	MaxLevel = 12
)

// Band is one row of the table. Max is math.MaxInt for the open-ended band.
type Band struct {
	Level int
	Min   int
	Max   int
}

// Open reports whether the band has no upper bound.
func (b Band) Open() bool { return b.Max == math.MaxInt }

// Contains reports whether rate falls inside the band.
func (b Band) Contains(rate int) bool { return rate >= b.Min && rate <= b.Max }

// Table is the ascending rate table. Level 12 is reachable from a rate alone
// only at 1000 and above; below that it needs a modifier.
var Table = []Band{
	{Level: 1, Min: 200, Max: 249},
	{Level: 2, Min: 250, Max: 299},
	{Level: 3, Min: 300, Max: 399},
	{Level: 4, Min: 400, Max: 499},
	{Level: 5, Min: 500, Max: 599},
	{Level: 6, Min: 600, Max: 699},
	{Level: 7, Min: 700, Max: 799},
	{Level: 8, Min: 800, Max: 899},
	{Level: 9, Min: 900, Max: 949},
	{Level: 10, Min: 950, Max: 998},
	{Level: 11, Min: 999, Max: 999},
	{Level: 12, Min: 1000, Max: math.MaxInt},
}

// Lookup returns the level for rate plus modifier, clamped to [1,12].
// A rate outside every band counts as level 1.
func Lookup(rate, modifier int) int {
	level := MinLevel
	for _, b := range Table {
		if b.Contains(rate) {
			level = b.Level
			break
		}
	}
	level += modifier
	if level > MaxLevel {
		return MaxLevel
	}
	if level < MinLevel {
		return MinLevel
	}
	return level
}

// Range is the answer of RangeForLevel: either bounds or the open-ended marker.
type Range struct {
	Min  int  `json:"min"`
	Max  int  `json:"max"`
	Over bool `json:"over"`
}

// RangeForLevel returns the rate bounds for level. Level 12 yields
// Range{Over: true, Min: 1000}; an unknown level yields the level 1 bounds.
func RangeForLevel(level int) Range {
	for _, b := range Table {
		if b.Level != level {
			continue
		}
		if b.Open() {
			return Range{Min: b.Min, Over: true}
		}
		return Range{Min: b.Min, Max: b.Max}
	}
	return Range{Min: Table[0].Min, Max: Table[0].Max}
}
