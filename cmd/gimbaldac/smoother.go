package main

import "github.com/asecurityteam/rolling"

// Smoother is a moving-average filter over the last N pushed samples.
//
// This is intended to be called only by the sample loop goroutine (single-owner).
type Smoother struct {
	size   int
	count  int
	window *rolling.PointPolicy
}

// NewSmoother returns a smoother over n samples. n < 1 is treated as 1.
func NewSmoother(n int) *Smoother {
	if n < 1 {
		n = 1
	}
	return &Smoother{
		size:   n,
		window: rolling.NewPointPolicy(rolling.NewWindow(n)),
	}
}

// Window returns the configured window size.
func (s *Smoother) Window() int { return s.size }

// Push adds v and returns the mean of the buffered samples.
// Until the window fills, only the samples pushed so far are averaged.
func (s *Smoother) Push(v float64) float64 {
	if s.size == 1 {
		return v
	}
	s.window.Append(v)
	if s.count < s.size {
		s.count++
	}
	if s.count == s.size {
		return s.window.Reduce(rolling.Avg)
	}

	// The point policy fills buckets in order starting at zero.
	n := s.count
	return s.window.Reduce(func(w rolling.Window) float64 {
		var sum float64
		var points int
		for _, bucket := range w[:n] {
			for _, p := range bucket {
				sum += p
				points++
			}
		}
		if points == 0 {
			return 0
		}
		return sum / float64(points)
	})
}

// Reset empties the buffer.
func (s *Smoother) Reset() {
	if s.count == 0 {
		return
	}
	s.count = 0
	s.window = rolling.NewPointPolicy(rolling.NewWindow(s.size))
}
