package mapping

import "math"

// Apply maps value through the stream: clamp into the input range, normalise
// to t in [0,1], bend t with the interpolation curve, rescale into the output range.
// A degenerate input range normalises every value to 0.
func (s Stream) Apply(value float64) float64 {
	span := s.InputMax - s.InputMin
	t := 0.0
	if span != 0 {
		t = clamp01((value - s.InputMin) / span)
	}
	return s.OutputMin + s.Interpolation.curve(t)*(s.OutputMax-s.OutputMin)
}

func (i Interpolation) curve(t float64) float64 {
	switch i {
	case InterpolationLogarithmic:
		return math.Log10(1 + 9*t)
	case InterpolationExponential:
		return (math.Pow(10, t) - 1) / 9
	default:
		return t
	}
}

func clamp01(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
