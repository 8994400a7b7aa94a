// Package detect normalises raw per-frame detector output into the uniform
// detection records consumed by the tracking and accident layers.
//
// The external detector reports boxes as [x1, y1, x2, y2] in image
// coordinates where y grows downward. Normalize applies the vertical-axis
// inversion exactly once, at ingestion; every downstream consumer works in
// the engine frame where y grows upward and must never re-flip.
package detect

import (
	"github.com/banshee-data/accident.report/internal/geom"
)

// RawFrame is one frame of detector output: three parallel lists plus the
// frame index. Entries beyond the shortest list are dropped during
// normalisation rather than failing the frame.
type RawFrame struct {
	FrameIdx    int          `json:"frame_idx"`
	Boxes       [][4]float64 `json:"boxes"` // [x1, y1, x2, y2], detector frame
	Confidences []float64    `json:"confidences"`
	Classes     []string     `json:"classes"`
}

// Detection is one normalised vehicle detection in the engine frame.
type Detection struct {
	FrameIdx   int
	Class      string
	Confidence float64
	Center     geom.Point
	Box        geom.Box
}

// Normalizer filters raw detections to the configured vehicle classes and
// minimum confidence, converting boxes and centers into the engine frame.
type Normalizer struct {
	confidenceThreshold float64
	vehicleClasses      map[string]bool
}

// NewNormalizer builds a Normalizer for the given class set and threshold.
func NewNormalizer(vehicleClasses []string, confidenceThreshold float64) *Normalizer {
	classes := make(map[string]bool, len(vehicleClasses))
	for _, c := range vehicleClasses {
		classes[c] = true
	}
	return &Normalizer{
		confidenceThreshold: confidenceThreshold,
		vehicleClasses:      classes,
	}
}

// invertBox converts a detector-frame [x1, y1, x2, y2] box into an engine
// frame geom.Box. Negating y swaps the vertical extremes, so the engine-frame
// minimum corner is (x1, -y2).
func invertBox(b [4]float64) geom.Box {
	return geom.Box{
		X: b[0],
		Y: -b[3],
		W: b[2] - b[0],
		H: b[3] - b[1],
	}
}

// Normalize converts one raw frame into the retained detections. Detections
// outside the vehicle-class set or below the confidence threshold are
// dropped; mismatched parallel-list lengths drop the unmatched tail.
func (n *Normalizer) Normalize(frame RawFrame) []Detection {
	count := len(frame.Boxes)
	if len(frame.Confidences) < count {
		count = len(frame.Confidences)
	}
	if len(frame.Classes) < count {
		count = len(frame.Classes)
	}

	detections := make([]Detection, 0, count)
	for i := 0; i < count; i++ {
		class := frame.Classes[i]
		if !n.vehicleClasses[class] {
			continue
		}
		conf := frame.Confidences[i]
		if conf < n.confidenceThreshold {
			continue
		}

		box := invertBox(frame.Boxes[i])
		detections = append(detections, Detection{
			FrameIdx:   frame.FrameIdx,
			Class:      class,
			Confidence: conf,
			Center:     box.Center(),
			Box:        box,
		})
	}
	return detections
}
