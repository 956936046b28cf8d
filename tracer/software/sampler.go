package software

// A per pixel random sequence. Seeding with the pixel index and the frame
// index makes every frame draw fresh samples while staying reproducible.
type sampler struct {
	state uint32
}

func newSampler(pixel, frame uint32) sampler {
	return sampler{state: tea(pixel, frame)}
}

// Tiny encryption algorithm hash used to decorrelate seeds.
func tea(v0, v1 uint32) uint32 {
	var sum uint32
	for n := 0; n < 16; n++ {
		sum += 0x9e3779b9
		v0 += ((v1 << 4) + 0xa341316c) ^ (v1 + sum) ^ ((v1 >> 5) + 0xc8013ea4)
		v1 += ((v0 << 4) + 0xad90777d) ^ (v0 + sum) ^ ((v0 >> 5) + 0x7e95761e)
	}
	return v0
}

// Get the next value in [0, 1).
func (s *sampler) next() float32 {
	// PCG step
	s.state = s.state*747796405 + 2891336453
	word := ((s.state >> ((s.state >> 28) + 4)) ^ s.state) * 277803737
	word = (word >> 22) ^ word
	return float32(word>>8) / (1 << 24)
}
