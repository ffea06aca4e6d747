package pulse

// Smoother rate-limits intensity changes between consecutive pulses,
// modelling a first-order rise of riseCycles carrier periods.
type Smoother struct {
	maxStep float64 // percentage points per pulse, 0 = uncapped

	last     float64
	lastTime float64
	primed   bool
}

// NewSmoother creates a smoother with the tuning's per-pulse step cap.
func NewSmoother(tuning Tuning) *Smoother {
	return &Smoother{maxStep: tuning.MaxStepPerPulse()}
}

// Apply returns the intensity to emit at time t for the given target.
func (s *Smoother) Apply(target, t, carrierHz, riseCycles float64) float64 {
	target = clamp(finite(target, 0), 0, 100)

	tau := 0.0
	if carrierHz > 0 {
		tau = riseCycles / carrierHz
	}

	out := target
	if s.primed && tau > 0 {
		dt := max(0, t-s.lastTime)
		allowed := dt / tau * 100
		if s.maxStep > 0 {
			allowed = min(allowed, s.maxStep)
		}
		out = s.last + clamp(target-s.last, -allowed, allowed)
	}

	s.last = out
	s.lastTime = t
	s.primed = true
	return out
}

// Last returns the most recently emitted intensity and whether there is one.
func (s *Smoother) Last() (float64, bool) {
	return s.last, s.primed
}
