package accident

import (
	"math"

	"github.com/banshee-data/accident.report/internal/config"
	"github.com/banshee-data/accident.report/internal/geom"
	"github.com/banshee-data/accident.report/internal/track"
)

// Fixed secondary thresholds. The primary thresholds are tunable; these
// confirmation bounds are part of the detector definitions themselves.
const (
	// suddenStopMaxVelocity confirms a real stop rather than noise on a
	// still-fast object.
	suddenStopMaxVelocity = 8.0
	// erraticMeanAngleDeg triggers the erratic detector on sustained
	// moderate turning even when no single turn exceeds the max threshold.
	erraticMeanAngleDeg = 35.0
	// suddenStopWindow and erraticWindow bound how far back each detector
	// looks into a track's derived history.
	suddenStopWindow = 3
	erraticPositions = 4
	// clusteringMinVehicles is the minimum detections in a frame before the
	// proximity analysis runs.
	clusteringMinVehicles = 3
	clusteringMinPairs    = 2
)

// DetectorConfig holds the tunable thresholds of the four event detectors.
type DetectorConfig struct {
	CollisionIoUThreshold float64
	SuddenStopThreshold   float64 // velocity delta, negative
	ClusteringDistance    float64
	ErraticAngleThreshold float64 // degrees
}

// DetectorConfigFromTuning builds a DetectorConfig from a loaded TuningConfig.
func DetectorConfigFromTuning(cfg *config.TuningConfig) DetectorConfig {
	return DetectorConfig{
		CollisionIoUThreshold: cfg.GetCollisionIoUThreshold(),
		SuddenStopThreshold:   cfg.GetSuddenStopThreshold(),
		ClusteringDistance:    cfg.GetClusteringDistance(),
		ErraticAngleThreshold: cfg.GetErraticAngleThreshold(),
	}
}

// detectCollisions flags pairs of tracks updated this exact frame whose last
// boxes overlap beyond the collision IoU threshold.
func detectCollisions(cfg DetectorConfig, tracks []*track.Track, frameIdx int) []Indicator {
	var updated []*track.Track
	for _, tr := range tracks {
		if tr.TimeSinceUpdate == 0 {
			updated = append(updated, tr)
		}
	}

	var out []Indicator
	for i := 0; i < len(updated); i++ {
		for j := i + 1; j < len(updated); j++ {
			iou := geom.IoU(updated[i].LastBox(), updated[j].LastBox())
			if iou <= cfg.CollisionIoUThreshold {
				continue
			}
			out = append(out, Indicator{
				Type:       IndicatorCollision,
				FrameIdx:   frameIdx,
				Confidence: math.Min(0.95, 0.6+iou*0.7),
				TrackIDs:   []int64{updated[i].ID, updated[j].ID},
				IoU:        iou,
			})
		}
	}
	return out
}

// detectSuddenStops flags tracks whose velocity collapsed within the recent
// window and whose current velocity confirms a stop.
func detectSuddenStops(cfg DetectorConfig, tracks []*track.Track, frameIdx int) []Indicator {
	var out []Indicator
	for _, tr := range tracks {
		if tr.TimeSinceUpdate != 0 {
			continue
		}
		velocities := tr.Velocities()
		if len(velocities) < 2 {
			continue
		}
		window := velocities
		if len(window) > suddenStopWindow {
			window = window[len(window)-suddenStopWindow:]
		}
		delta := window[len(window)-1] - window[0]
		if delta >= cfg.SuddenStopThreshold {
			continue
		}
		if tr.CurrentVelocity() >= suddenStopMaxVelocity {
			continue
		}
		out = append(out, Indicator{
			Type:          IndicatorSuddenStop,
			FrameIdx:      frameIdx,
			Confidence:    math.Min(0.90, 0.65+math.Abs(delta)/40),
			TrackID:       tr.ID,
			VelocityDelta: delta,
			VehicleClass:  tr.Class,
		})
	}
	return out
}

// detectErraticTrajectories flags tracks whose recent motion vectors turn
// sharply or keep turning.
func detectErraticTrajectories(cfg DetectorConfig, tracks []*track.Track, frameIdx int) []Indicator {
	var out []Indicator
	for _, tr := range tracks {
		if tr.TimeSinceUpdate != 0 {
			continue
		}
		if tr.HistoryLength() < erraticPositions {
			continue
		}
		angles := tr.MotionAngles(erraticPositions)
		if len(angles) == 0 {
			continue
		}

		maxAngle := angles[0]
		var sum float64
		for _, a := range angles {
			if a > maxAngle {
				maxAngle = a
			}
			sum += a
		}
		meanAngle := sum / float64(len(angles))

		if maxAngle <= cfg.ErraticAngleThreshold && meanAngle <= erraticMeanAngleDeg {
			continue
		}
		out = append(out, Indicator{
			Type:         IndicatorErratic,
			FrameIdx:     frameIdx,
			Confidence:   math.Min(0.85, 0.5+maxAngle/150),
			TrackID:      tr.ID,
			VehicleClass: tr.Class,
			MaxAngleDeg:  maxAngle,
			MeanAngleDeg: meanAngle,
		})
	}
	return out
}

// detectClustering flags frames where several vehicles bunch up: at least
// clusteringMinPairs detection pairs within the clustering distance, with at
// least clusteringMinVehicles distinct detections involved.
func detectClustering(cfg DetectorConfig, frame track.FrameSnapshot) []Indicator {
	detections := frame.Detections
	if len(detections) < clusteringMinVehicles {
		return nil
	}

	closePairs := 0
	involved := make(map[int]bool)
	for i := 0; i < len(detections); i++ {
		for j := i + 1; j < len(detections); j++ {
			if geom.Dist(detections[i].Center, detections[j].Center) < cfg.ClusteringDistance {
				closePairs++
				involved[i] = true
				involved[j] = true
			}
		}
	}

	if closePairs < clusteringMinPairs || len(involved) < clusteringMinVehicles {
		return nil
	}
	return []Indicator{{
		Type:         IndicatorClustering,
		FrameIdx:     frame.FrameIdx,
		Confidence:   math.Min(0.80, 0.55+float64(closePairs)*0.10),
		VehicleCount: len(detections),
		ClosePairs:   closePairs,
	}}
}

// RunDetectors executes all four detectors for one committed frame and
// returns the indicators emitted, in detector order.
func RunDetectors(cfg DetectorConfig, m *track.Manager, frame track.FrameSnapshot) []Indicator {
	tracks := m.Tracks()
	var out []Indicator
	out = append(out, detectCollisions(cfg, tracks, frame.FrameIdx)...)
	out = append(out, detectSuddenStops(cfg, tracks, frame.FrameIdx)...)
	out = append(out, detectErraticTrajectories(cfg, tracks, frame.FrameIdx)...)
	out = append(out, detectClustering(cfg, frame)...)
	return out
}
