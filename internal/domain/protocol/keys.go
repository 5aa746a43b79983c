package protocol

import "fmt"

// Stable value keys published by the producer.
const (
	KeyZeny      = "ZENY"
	KeyNoise     = "NOISE"
	KeyNoiseRate = "NOISE_RATE"
	KeyWarlock   = "WARLOCK"
	KeyBaseHP    = "BASE_HP"
	KeyReg       = "REG"
	KeyTag12     = "TAG1_2"
	KeyMyRezon   = "MY_REZON"

	// Folder confirmation registers; both equal and in [1,12] while the
	// finalize screen is open.
	KeyConfirm1 = "FOLDER_CONFIRM1"
	KeyConfirm2 = "FOLDER_CONFIRM2"
)

// Slot counts.
const (
	BrotherSlots   = 6
	NoiseCardSlots = 5
	DeckSlots      = 30
)

// BrotherRezonKey returns the key of brother n's rezon card (1-based).
func BrotherRezonKey(n int) string { return fmt.Sprintf("BRO%d_REZON", n) }

// NoiseCardKey returns the key of noise card slot n (1-based).
func NoiseCardKey(n int) string { return fmt.Sprintf("NOISE_CARD%d", n) }

// DeckCardKey returns the key of folder card n (1-based).
func DeckCardKey(n int) string { return fmt.Sprintf("CARD%02d", n) }
