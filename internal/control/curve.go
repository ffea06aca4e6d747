package control

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Curve is a control signal that can be sampled at any time (seconds).
type Curve interface {
	At(t float64) float64
}

// Release closes every curve that holds resources, such as a LuaCurve.
// Nil and plain curves are skipped.
func Release(curves ...Curve) {
	for _, c := range curves {
		if closer, ok := c.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

// Constant is a curve with a fixed value.
type Constant float64

func (c Constant) At(float64) float64 { return float64(c) }

// Keyframe is one point on a Keyframes curve.
type Keyframe struct {
	T     float64
	Value float64
}

// Keyframes interpolates linearly between points and holds the end values.
// With Loop > 0 the curve repeats every Loop seconds.
type Keyframes struct {
	Points []Keyframe
	Loop   float64
}

// NewKeyframes sorts the points by time.
func NewKeyframes(loop float64, points ...Keyframe) *Keyframes {
	sorted := append([]Keyframe(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].T < sorted[j].T })
	return &Keyframes{Points: sorted, Loop: loop}
}

func (k *Keyframes) At(t float64) float64 {
	n := len(k.Points)
	if n == 0 {
		return 0
	}
	if k.Loop > 0 {
		t = math.Mod(t, k.Loop)
		if t < 0 {
			t += k.Loop
		}
	}
	if t <= k.Points[0].T {
		return k.Points[0].Value
	}
	if t >= k.Points[n-1].T {
		return k.Points[n-1].Value
	}

	i := sort.Search(n, func(i int) bool { return k.Points[i].T > t })
	a, b := k.Points[i-1], k.Points[i]
	if b.T == a.T {
		return b.Value
	}
	frac := (t - a.T) / (b.T - a.T)
	return a.Value + (b.Value-a.Value)*frac
}

// ParseCurve builds a curve from a config string:
//
//	"42"                     constant
//	"keys:0=10,2=50,4=10"    keyframes (time=value, seconds)
//	"loop=4;keys:0=10,2=50"  looping keyframes
//	"lua:50+50*math.sin(t)"  Lua expression in t
func ParseCurve(s string) (Curve, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty curve")
	}

	if expr, ok := strings.CutPrefix(s, "lua:"); ok {
		return NewLuaCurve(expr)
	}

	loop := 0.0
	if rest, ok := strings.CutPrefix(s, "loop="); ok {
		period, keys, found := strings.Cut(rest, ";")
		if !found {
			return nil, fmt.Errorf("curve %q: loop needs keyframes", s)
		}
		v, err := strconv.ParseFloat(period, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("curve %q: bad loop period %q", s, period)
		}
		loop = v
		s = keys
	}

	if keys, ok := strings.CutPrefix(s, "keys:"); ok {
		var points []Keyframe
		for _, pair := range strings.Split(keys, ",") {
			ts, vs, found := strings.Cut(strings.TrimSpace(pair), "=")
			if !found {
				return nil, fmt.Errorf("curve keyframe %q: want time=value", pair)
			}
			kt, err := strconv.ParseFloat(ts, 64)
			if err != nil {
				return nil, fmt.Errorf("curve keyframe %q: %w", pair, err)
			}
			kv, err := strconv.ParseFloat(vs, 64)
			if err != nil {
				return nil, fmt.Errorf("curve keyframe %q: %w", pair, err)
			}
			points = append(points, Keyframe{T: kt, Value: kv})
		}
		return NewKeyframes(loop, points...), nil
	}
	if loop > 0 {
		return nil, fmt.Errorf("curve %q: loop needs keyframes", s)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("curve %q: %w", s, err)
	}
	return Constant(v), nil
}
