package core

// ADMUX / ADCSRA bits
const (
	bitREFS0   = 6
	bitADEN    = 7
	bitADSC    = 6
	adpsDiv128 = 0x07
	muxMask    = 0x07
)

// ADCResolution is the width of an ATmega32 conversion result.
const ADCResolution = 10

// adcPollLimit bounds the busy wait for one conversion.
const adcPollLimit = 10000

// RegisterSampler runs single conversions on the on-chip ADC: AVCC
// reference, prescaler /128, polling ADSC until the hardware clears it.
type RegisterSampler struct {
	regs RegisterFile
	last uint16
}

// NewRegisterSampler powers up the ADC.
func NewRegisterSampler(regs RegisterFile) *RegisterSampler {
	regs.Store8(ADMUX, 1<<bitREFS0)
	regs.Store8(ADCSRA, 1<<bitADEN|adpsDiv128)
	return &RegisterSampler{regs: regs}
}

// ReadChannel converts ch (0..7). If the conversion does not finish within
// the poll limit the previous result is returned.
func (s *RegisterSampler) ReadChannel(ch uint8) uint16 {
	s.regs.Store8(ADMUX, s.regs.Load8(ADMUX)&^muxMask|ch&muxMask)
	s.regs.Store8(ADCSRA, s.regs.Load8(ADCSRA)|1<<bitADSC)
	for i := 0; i < adcPollLimit; i++ {
		if s.regs.Load8(ADCSRA)&(1<<bitADSC) == 0 {
			// ADCL first latches ADCH
			lo := s.regs.Load8(ADCL)
			hi := s.regs.Load8(ADCH)
			s.last = (uint16(hi)<<8 | uint16(lo)) & (1<<ADCResolution - 1)
			return s.last
		}
	}
	DebugPrintln("[ADC] conversion timeout ch=" + utoa(uint32(ch)))
	return s.last
}

func (s *RegisterSampler) Resolution() uint8 { return ADCResolution }
