package fakeproducer

import (
	"github.com/okian/ssr3bridge/internal/domain/protocol"
)

const baseAddress = 0x02000000

// Register describes one tracked value.
type Register struct {
	Name    string
	Address uint32
	Size    int
	Value   uint64
}

// DefaultRegisters returns the address table the fake producer serves:
// money, noise, latch registers, rezon slots, noise card slots and the
// folder cards.
func DefaultRegisters() []Register {
	var regs []Register
	add := func(name string, size int, v uint64) {
		regs = append(regs, Register{
			Name:    name,
			Address: baseAddress + uint32(len(regs))*4,
			Size:    size,
			Value:   v,
		})
	}

	add(protocol.KeyZeny, 4, 1000)
	add(protocol.KeyNoise, 4, 0)
	add(protocol.KeyNoiseRate, 4, 0)
	add(protocol.KeyConfirm1, 1, 0)
	add(protocol.KeyConfirm2, 1, 0)
	add(protocol.KeyWarlock, 2, 0)
	add(protocol.KeyBaseHP, 2, 500)
	add(protocol.KeyReg, 1, 0)
	add(protocol.KeyTag12, 2, 0)
	add(protocol.KeyMyRezon, 2, 0)
	for i := 1; i <= protocol.BrotherSlots; i++ {
		add(protocol.BrotherRezonKey(i), 2, 0)
	}
	for i := 1; i <= protocol.NoiseCardSlots; i++ {
		add(protocol.NoiseCardKey(i), 2, 0)
	}
	for i := 1; i <= protocol.DeckSlots; i++ {
		add(protocol.DeckCardKey(i), 2, 0)
	}
	return regs
}

func mask(v uint64, size int) uint64 {
	if size <= 0 || size >= 8 {
		return v
	}
	return v & (1<<(uint(size)*8) - 1)
}
