package core

// ChangeCompareValue rewrites only the compare register(s) of a configured
// timer. Clock, waveform and output pin configuration are not touched, and
// the hardware latches the new value at the next counter wrap in PWM modes.
//
// On the 8-bit timers ch is ignored. On Timer1 channel B the
// OCR1A = value+1 / OCR1B = value pair is rewritten on every call. Once
// Timer1 runs channel B in CTC or fast PWM, OCR1A belongs to the pair, so
// a channel A update is applied to the pair as well.
// value is truncated to the timer width.
func (t *Timers) ChangeCompareValue(id TimerID, value uint32, ch ChannelSelect) error {
	l, err := t.configured("set compare", id)
	if err != nil {
		return err
	}
	if ch >= numChannels {
		return t.reject("set compare", CodeInvalidChannel, ch.String(), uint8(id))
	}

	v := value & l.Max()
	if !l.DualChannel() {
		ch = ChannelA
	}
	if pairedCompare(l, t.cfg[id]) {
		ch = ChannelB
	}
	im := &registerImage{}
	switch {
	case l.Wide() && ch == ChannelB:
		writeComparePair(im, l, v)
	default:
		im.set(l, l.Channel(ch).Compare, v)
	}
	im.apply(t.regs)

	// The polling loop calls this continuously; only changes are recorded.
	if t.cfg[id].CompareMatchValue != v || t.cfg[id].Channel != ch {
		RecordEvent(EvtCompare, uint8(id), uint32(ch), v)
	}
	t.cfg[id].CompareMatchValue = v
	t.cfg[id].Channel = ch
	return nil
}

// CompareValue reads back the compare register of ch.
func (t *Timers) CompareValue(id TimerID, ch ChannelSelect) (uint32, error) {
	l, ok := LayoutFor(id)
	if !ok {
		return 0, configErr("read compare", CodeInvalidTimer, id.String())
	}
	if ch >= numChannels {
		return 0, configErr("read compare", CodeInvalidChannel, ch.String())
	}
	r := l.Channel(ch).Compare
	if l.Wide() {
		return uint32(load16(t.regs, r)), nil
	}
	return uint32(t.regs.Load8(r)), nil
}
