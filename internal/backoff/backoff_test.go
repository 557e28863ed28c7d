package backoff

import (
	"testing"
	"time"
)

func TestCompute_ExponentialGrowth(t *testing.T) {
	p := Policy{Initial: time.Second, Factor: 2.0}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}
	for _, tc := range cases {
		if got := p.ComputeWithRand(tc.attempt, 0); got != tc.want {
			t.Errorf("attempt %d = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestCompute_CapsAtMax(t *testing.T) {
	p := TailerPolicy(500 * time.Millisecond)
	max := 500 * time.Millisecond * 16

	for attempt := 1; attempt <= 20; attempt++ {
		if got := p.ComputeWithRand(attempt, 1); got > max {
			t.Errorf("attempt %d = %v exceeds cap %v", attempt, got, max)
		}
	}
	if got := p.ComputeWithRand(10, 0); got != max {
		t.Errorf("deep attempt = %v, want exactly the cap %v", got, max)
	}
}

func TestCompute_JitterStaysWithinFraction(t *testing.T) {
	p := Policy{Initial: time.Second, Factor: 2.0, Jitter: 0.2}

	noJitter := p.ComputeWithRand(3, 0)
	fullJitter := p.ComputeWithRand(3, 0.999999)

	if noJitter != 4*time.Second {
		t.Errorf("base = %v, want 4s", noJitter)
	}
	maxExpected := time.Duration(float64(4*time.Second) * 1.2)
	if fullJitter < noJitter || fullJitter > maxExpected {
		t.Errorf("jittered = %v, want within [%v, %v]", fullJitter, noJitter, maxExpected)
	}
}

func TestCompute_AttemptBelowOneClamps(t *testing.T) {
	p := Policy{Initial: time.Second, Factor: 2.0}
	if got := p.ComputeWithRand(0, 0); got != time.Second {
		t.Errorf("attempt 0 = %v, want Initial", got)
	}
	if got := p.ComputeWithRand(-5, 0); got != time.Second {
		t.Errorf("attempt -5 = %v, want Initial", got)
	}
}
