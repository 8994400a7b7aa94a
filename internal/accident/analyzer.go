package accident

import (
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/accident.report/internal/config"
	"github.com/banshee-data/accident.report/internal/detect"
	"github.com/banshee-data/accident.report/internal/track"
)

// Analyzer runs one detection sequence end to end: it normalises raw frames,
// drives the track manager, runs the event detectors per committed frame,
// and fuses the accumulated indicators into the final report.
//
// An Analyzer is single-sequence and single-goroutine; frames must arrive in
// ascending index order. Independent sequences run concurrently by giving
// each its own Analyzer. Aborting a sequence is just dropping the Analyzer.
type Analyzer struct {
	normalizer *detect.Normalizer
	manager    *track.Manager
	detectors  DetectorConfig

	indicators []Indicator
}

// NewAnalyzer builds an Analyzer for one sequence from the tuning config.
func NewAnalyzer(cfg *config.TuningConfig) *Analyzer {
	return &Analyzer{
		normalizer: detect.NewNormalizer(cfg.GetVehicleClasses(), cfg.GetConfidenceThreshold()),
		manager:    track.NewManager(track.ConfigFromTuning(cfg)),
		detectors:  DetectorConfigFromTuning(cfg),
	}
}

// ProcessFrame ingests one raw detector frame: normalise, update tracks, run
// all four detectors against the committed frame state. It returns the
// indicators emitted for this frame, which are also accumulated for Finalize.
func (a *Analyzer) ProcessFrame(frame detect.RawFrame) []Indicator {
	detections := a.normalizer.Normalize(frame)
	a.manager.ProcessFrame(detections, frame.FrameIdx)

	log := a.manager.FrameLog()
	snapshot := log[len(log)-1]
	found := RunDetectors(a.detectors, a.manager, snapshot)
	a.indicators = append(a.indicators, found...)
	return found
}

// Finalize fuses all accumulated indicators into the sequence report.
// A sequence with no frames yields verdict false, confidence 0, ratio 0.
func (a *Analyzer) Finalize() Report {
	report := Fuse(a.indicators, a.manager.TotalFrames())
	report.ConfirmedTracks = a.manager.ConfirmedCount()
	report.TotalDetections = a.manager.TotalDetections()
	return report
}

// Tracks exposes the live track set, confirmed and tentative, in creation
// order.
func (a *Analyzer) Tracks() []*track.Track {
	return a.manager.Tracks()
}

// Summary returns per-track statistics for storage or display.
func (a *Analyzer) Summary() TrackSummary {
	summary := TrackSummary{
		TracksCreated:   a.manager.TracksCreated(),
		ConfirmedTracks: a.manager.ConfirmedCount(),
		VehicleCounts:   make(map[string]int),
		TotalDetections: a.manager.TotalDetections(),
		TotalFrames:     a.manager.TotalFrames(),
	}

	var confidences []float64
	for _, f := range a.manager.FrameLog() {
		for _, d := range f.Detections {
			summary.VehicleCounts[d.Class]++
			confidences = append(confidences, d.Confidence)
		}
	}
	if len(confidences) > 0 {
		summary.AvgConfidence = stat.Mean(confidences, nil)
	}

	tracks := a.manager.Tracks()
	if len(tracks) > 0 {
		lengths := make([]float64, len(tracks))
		for i, tr := range tracks {
			lengths[i] = float64(tr.HistoryLength())
		}
		summary.AvgTrackLength = stat.Mean(lengths, nil)
	}
	return summary
}
