package track

import (
	"github.com/banshee-data/accident.report/internal/detect"
	"github.com/banshee-data/accident.report/internal/geom"
)

// Cost term weights for track-to-detection association. Distance dominates,
// box overlap refines, and a class mismatch penalises without forbidding.
const (
	costWeightDistance = 0.5
	costWeightIoU      = 0.3
	costWeightClass    = 0.2

	classMatchTerm    = 1.0
	classMismatchTerm = 2.0
)

// matchResult holds the outcome of one frame's association pass.
type matchResult struct {
	// matched maps track index → detection index for accepted pairs.
	matched map[int]int
	// unmatchedTracks and unmatchedDetections list the leftover indices in
	// ascending order.
	unmatchedTracks     []int
	unmatchedDetections []int
}

// associate builds the track×detection cost matrix, solves the optimal
// assignment, and applies the gate: proposed pairs at or above the gate are
// rejected even though the solver selected them. An empty side short-circuits
// without building a matrix.
func associate(tracks []*Track, detections []detect.Detection, frameIdx int, cfg Config) matchResult {
	res := matchResult{matched: make(map[int]int)}

	if len(tracks) == 0 || len(detections) == 0 {
		for i := range tracks {
			res.unmatchedTracks = append(res.unmatchedTracks, i)
		}
		for j := range detections {
			res.unmatchedDetections = append(res.unmatchedDetections, j)
		}
		return res
	}

	cost := make([][]float64, len(tracks))
	for i, tr := range tracks {
		cost[i] = make([]float64, len(detections))
		predicted := tr.Predict(frameIdx)
		lastBox := tr.LastBox()
		for j, d := range detections {
			cost[i][j] = pairCost(predicted, lastBox, tr.Class, d, cfg.MaxTrackingDistance)
		}
	}

	assign := hungarianAssign(cost)

	matchedDetections := make([]bool, len(detections))
	for i := range tracks {
		j := assign[i]
		if j >= 0 && cost[i][j] < cfg.MatchGate {
			res.matched[i] = j
			matchedDetections[j] = true
		} else {
			res.unmatchedTracks = append(res.unmatchedTracks, i)
		}
	}
	for j := range detections {
		if !matchedDetections[j] {
			res.unmatchedDetections = append(res.unmatchedDetections, j)
		}
	}
	return res
}

// pairCost computes the association cost between a track and a detection.
// Distance is normalised by the maximum tracking distance; this is a
// normalisation, not a hard cutoff.
func pairCost(predicted geom.Point, lastBox geom.Box, class string, d detect.Detection, maxDist float64) float64 {
	distTerm := geom.Dist(predicted, d.Center) / maxDist
	iouTerm := 1.0 - geom.IoU(lastBox, d.Box)
	classTerm := classMismatchTerm
	if class == d.Class {
		classTerm = classMatchTerm
	}
	return costWeightDistance*distTerm + costWeightIoU*iouTerm + costWeightClass*classTerm
}
