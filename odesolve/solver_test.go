package odesolve

import (
	"math"
	"testing"
)

// TestEulerDecay checks first-order decay dy/dt = -k*y against Euler's
// own one-step update over a single full step.
func TestEulerDecay(t *testing.T) {
	s := NewEulerSolver(1)
	y := []float64{1.0}
	k := 0.1
	f := func(t float64, y, dst []float64) error {
		dst[0] = -k * y[0]
		return nil
	}
	h, err := s.Step(0, 1, y, nil, nil, 1, f)
	if err != nil {
		t.Fatal(err)
	}
	if h != 1 {
		t.Errorf("step = %v, want 1", h)
	}
	want := 1 - k // Euler: y1 = y0 + h*(-k*y0)
	if math.Abs(y[0]-want) > 1e-9 {
		t.Errorf("y = %v, want %v", y[0], want)
	}
}

// TestRK5Decay checks that RK5 tracks exponential decay much more
// accurately than Euler over a full unit step.
func TestRK5Decay(t *testing.T) {
	s := NewRK5Solver(1)
	y := []float64{1.0}
	k := 0.1
	f := func(t float64, y, dst []float64) error {
		dst[0] = -k * y[0]
		return nil
	}
	tNow := 0.0
	for tNow < 1 {
		h, err := s.Step(tNow, 1, y, []float64{1e-8}, []float64{1e-10}, 0.1, f)
		if err != nil {
			t.Fatal(err)
		}
		tNow += h
	}
	want := math.Exp(-k)
	if math.Abs(y[0]-want) > 1e-6 {
		t.Errorf("y = %v, want %v", y[0], want)
	}
}

// TestROS2Stiff ensures ROS2 on a very stiff quadratic-decay term
// (k = 1e9) integrates to tEnd without returning an error and never
// produces a non-physical (negative) concentration.
func TestROS2Stiff(t *testing.T) {
	s := NewROS2Solver(1)
	y := []float64{1.0}
	k := 1e9
	f := func(t float64, y, dst []float64) error {
		dst[0] = -k * y[0] * y[0]
		return nil
	}
	tNow := 0.0
	for tNow < 1e-6 {
		h, err := s.Step(tNow, 1e-6, y, []float64{1e-6}, []float64{1e-12}, 1e-9, f)
		if err != nil {
			t.Fatalf("ROS2 failed on stiff system: %v", err)
		}
		tNow += h
		if y[0] < -1e-9 {
			t.Fatalf("non-physical negative concentration: %v", y[0])
		}
	}
}
