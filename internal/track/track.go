// Package track owns the multi-object tracking layer: per-object track
// state, frame-to-track association via optimal assignment, and the track
// lifecycle (creation, confirmation, coasting, pruning).
package track

import (
	"math"

	"github.com/banshee-data/accident.report/internal/detect"
	"github.com/banshee-data/accident.report/internal/geom"
)

// Bounded history capacities. Velocities and accelerations are derived
// sequences and run one and two entries shorter than positions.
const (
	MaxHistoryLength      = 30
	MaxVelocityLength     = MaxHistoryLength - 1
	MaxAccelerationLength = MaxHistoryLength - 2
)

// Track is the bounded-history state for one tracked object. The primary
// history buffers (positions, frames, confidences, boxes) always hold the
// same number of entries.
type Track struct {
	ID    int64
	Class string // fixed at creation

	positions   []geom.Point
	frames      []int
	confidences []float64
	boxes       []geom.Box

	velocities    []float64
	accelerations []float64

	// Lifecycle counters
	Age             int // frames since creation
	TimeSinceUpdate int // consecutive frames missed
	Hits            int // total successful updates
	HitStreak       int // consecutive successful updates
}

// newTrack creates a track from an unmatched detection. The detection counts
// as the first hit.
func newTrack(id int64, d detect.Detection) *Track {
	return &Track{
		ID:          id,
		Class:       d.Class,
		positions:   []geom.Point{d.Center},
		frames:      []int{d.FrameIdx},
		confidences: []float64{d.Confidence},
		boxes:       []geom.Box{d.Box},
		Hits:        1,
		HitStreak:   1,
	}
}

// Predict extrapolates the track position to frameIdx using a constant
// velocity model over the two most recent positions. With fewer than two
// positions recorded it returns the last known position unchanged.
func (t *Track) Predict(frameIdx int) geom.Point {
	last := t.positions[len(t.positions)-1]
	if len(t.positions) < 2 {
		return last
	}
	prev := t.positions[len(t.positions)-2]
	gap := float64(frameIdx - t.frames[len(t.frames)-1])
	return geom.Point{
		X: last.X + (last.X-prev.X)*gap,
		Y: last.Y + (last.Y-prev.Y)*gap,
	}
}

// Update appends a matched detection to the track history and refreshes the
// derived velocity and acceleration sequences. Oldest entries are evicted
// once a buffer reaches capacity.
func (t *Track) Update(d detect.Detection, frameIdx int) {
	prevFrame := t.frames[len(t.frames)-1]

	t.positions = appendBounded(t.positions, d.Center, MaxHistoryLength)
	t.frames = appendBounded(t.frames, frameIdx, MaxHistoryLength)
	t.confidences = appendBounded(t.confidences, d.Confidence, MaxHistoryLength)
	t.boxes = appendBounded(t.boxes, d.Box, MaxHistoryLength)

	frameGap := float64(frameIdx - prevFrame)
	if len(t.positions) >= 2 && frameGap > 0 {
		curr := t.positions[len(t.positions)-1]
		prev := t.positions[len(t.positions)-2]
		velocity := geom.Dist(prev, curr) / frameGap
		t.velocities = appendBounded(t.velocities, velocity, MaxVelocityLength)

		if len(t.velocities) >= 2 {
			prevVel := t.velocities[len(t.velocities)-2]
			accel := (velocity - prevVel) / frameGap
			t.accelerations = appendBounded(t.accelerations, accel, MaxAccelerationLength)
		}
	}

	t.Age++
	t.Hits++
	t.HitStreak++
	t.TimeSinceUpdate = 0
}

// MarkMissed records a frame with no matching detection. History is left
// untouched.
func (t *Track) MarkMissed() {
	t.TimeSinceUpdate++
	t.Age++
	t.HitStreak = 0
}

// CurrentVelocity returns the most recent instantaneous velocity, or 0 if
// the track has not yet recorded two observations.
func (t *Track) CurrentVelocity() float64 {
	if len(t.velocities) == 0 {
		return 0
	}
	return t.velocities[len(t.velocities)-1]
}

// LastPosition returns the most recent recorded center.
func (t *Track) LastPosition() geom.Point {
	return t.positions[len(t.positions)-1]
}

// LastBox returns the most recent recorded bounding box.
func (t *Track) LastBox() geom.Box {
	return t.boxes[len(t.boxes)-1]
}

// LastFrame returns the frame index of the most recent observation.
func (t *Track) LastFrame() int {
	return t.frames[len(t.frames)-1]
}

// Positions returns a copy of the position history.
func (t *Track) Positions() []geom.Point {
	out := make([]geom.Point, len(t.positions))
	copy(out, t.positions)
	return out
}

// Velocities returns a copy of the derived velocity history.
func (t *Track) Velocities() []float64 {
	out := make([]float64, len(t.velocities))
	copy(out, t.velocities)
	return out
}

// Accelerations returns a copy of the derived acceleration history.
func (t *Track) Accelerations() []float64 {
	out := make([]float64, len(t.accelerations))
	copy(out, t.accelerations)
	return out
}

// HistoryLength returns the number of recorded observations.
func (t *Track) HistoryLength() int {
	return len(t.positions)
}

// AvgConfidence returns the mean detection confidence over the history.
func (t *Track) AvgConfidence() float64 {
	if len(t.confidences) == 0 {
		return 0
	}
	var sum float64
	for _, c := range t.confidences {
		sum += c
	}
	return sum / float64(len(t.confidences))
}

// PathLength returns the total distance travelled over the recorded history.
func (t *Track) PathLength() float64 {
	var total float64
	for i := 1; i < len(t.positions); i++ {
		total += geom.Dist(t.positions[i-1], t.positions[i])
	}
	return total
}

// historyLengthsConsistent reports whether the primary buffers agree in
// length and respect capacity. Used by tests.
func (t *Track) historyLengthsConsistent() bool {
	n := len(t.positions)
	if len(t.frames) != n || len(t.confidences) != n || len(t.boxes) != n {
		return false
	}
	return n <= MaxHistoryLength &&
		len(t.velocities) <= MaxVelocityLength &&
		len(t.accelerations) <= MaxAccelerationLength
}

// appendBounded appends v and evicts the oldest entry once the buffer
// exceeds cap entries.
func appendBounded[T any](s []T, v T, capacity int) []T {
	s = append(s, v)
	if len(s) > capacity {
		s = s[1:]
	}
	return s
}

// angleBetweenDeg returns the angle in degrees between two motion vectors
// via the normalised dot product, clipped to [-1, 1] before the inverse
// cosine. Zero-length vectors yield 0.
func angleBetweenDeg(ax, ay, bx, by float64) float64 {
	na := math.Sqrt(ax*ax + ay*ay)
	nb := math.Sqrt(bx*bx + by*by)
	if na == 0 || nb == 0 {
		return 0
	}
	dot := (ax*bx + ay*by) / (na * nb)
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return math.Acos(dot) * 180 / math.Pi
}

// MotionAngles returns the angles (degrees) between consecutive motion
// vectors over the last n positions. With fewer than three of the requested
// positions available it returns nil.
func (t *Track) MotionAngles(n int) []float64 {
	if n > len(t.positions) {
		n = len(t.positions)
	}
	if n < 3 {
		return nil
	}
	pts := t.positions[len(t.positions)-n:]

	angles := make([]float64, 0, n-2)
	for i := 0; i+2 < len(pts); i++ {
		ax := pts[i+1].X - pts[i].X
		ay := pts[i+1].Y - pts[i].Y
		bx := pts[i+2].X - pts[i+1].X
		by := pts[i+2].Y - pts[i+1].Y
		angles = append(angles, angleBetweenDeg(ax, ay, bx, by))
	}
	return angles
}
