package bpred

// SatCounter is a fixed-width saturating counter. Increment and decrement
// clamp at the bounds of [0, 2^bits - 1] instead of wrapping.
type SatCounter struct {
	bits  uint8
	max   uint8
	value uint8
}

// NewSatCounter creates a counter of the given width holding zero.
func NewSatCounter(bits uint8) SatCounter {
	c := SatCounter{}
	c.SetBits(bits)
	return c
}

// SetBits fixes the counter width. Valid widths are 1 through 8. The current
// value is clamped to the new domain.
func (c *SatCounter) SetBits(bits uint8) {
	if bits == 0 || bits > 8 {
		panic("bpred: counter width must be in [1, 8]")
	}
	c.bits = bits
	c.max = uint8((uint16(1) << bits) - 1)
	if c.value > c.max {
		c.value = c.max
	}
}

// Bits returns the counter width.
func (c *SatCounter) Bits() uint8 {
	return c.bits
}

// Read returns the current value.
func (c *SatCounter) Read() uint8 {
	return c.value
}

// Reset sets the counter to v, clamped to the counter domain.
func (c *SatCounter) Reset(v uint8) {
	if v > c.max {
		v = c.max
	}
	c.value = v
}

// Increment adds one unless the counter is saturated.
func (c *SatCounter) Increment() {
	if c.value < c.max {
		c.value++
	}
}

// Decrement subtracts one unless the counter is at zero.
func (c *SatCounter) Decrement() {
	if c.value > 0 {
		c.value--
	}
}

// Predict reports the top bit of the counter: true iff the value is at
// least half of the domain.
func (c *SatCounter) Predict() bool {
	return c.value>>(c.bits-1) != 0
}
