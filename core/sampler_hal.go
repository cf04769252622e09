package core

// AnalogSampler produces fixed-resolution samples for the speed loop.
type AnalogSampler interface {
	// ReadChannel performs one blocking conversion on ch
	ReadChannel(ch uint8) uint16

	// Resolution returns the sample width in bits
	Resolution() uint8
}

// Global singleton used by core code.
var analogSampler AnalogSampler

// SetAnalogSampler is called by target-specific code to register its driver.
func SetAnalogSampler(s AnalogSampler) {
	analogSampler = s
}

// MustSampler returns the configured sampler or panics if missing.
func MustSampler() AnalogSampler {
	if analogSampler == nil {
		panic("analog sampler not configured")
	}
	return analogSampler
}
