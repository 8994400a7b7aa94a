package track

import (
	"github.com/banshee-data/accident.report/internal/config"
	"github.com/banshee-data/accident.report/internal/detect"
)

// Config holds the tracker lifecycle and association parameters.
type Config struct {
	MaxAge              int     // Consecutive misses before an unconfirmed track is pruned
	MinHits             int     // Successful updates needed for confirmation
	MatchGate           float64 // Maximum acceptable assignment cost
	MaxTrackingDistance float64 // Distance normalisation for the cost matrix
	MaxCoastFrames      int     // Absolute miss budget, applied even to confirmed tracks
}

// ConfigFromTuning builds a tracker Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	maxAge := cfg.GetMaxTrackAge()
	return Config{
		MaxAge:              maxAge,
		MinHits:             cfg.GetMinHitsToConfirm(),
		MatchGate:           cfg.GetMatchGate(),
		MaxTrackingDistance: cfg.GetMaxTrackingDistance(),
		MaxCoastFrames:      cfg.GetMaxCoastMultiple() * maxAge,
	}
}

// FrameSnapshot is the immutable per-frame detection log entry. The event
// detectors read these after the frame is committed.
type FrameSnapshot struct {
	FrameIdx   int
	Detections []detect.Detection
}

// Manager owns the live track set for one sequence and the per-frame
// detection log. It is not safe for concurrent use; each sequence gets its
// own Manager and frames must be processed in ascending order.
type Manager struct {
	cfg    Config
	tracks []*Track // creation order, which keeps association deterministic
	nextID int64

	frameLog []FrameSnapshot

	tracksCreated int
}

// NewManager creates a Manager with the given configuration.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, nextID: 1}
}

// ProcessFrame runs one frame through the tracker: associate, update
// matched tracks, mark misses, spawn tracks from unmatched detections, and
// prune. The frame is appended to the detection log even when empty, so the
// log length equals the number of processed frames.
func (m *Manager) ProcessFrame(detections []detect.Detection, frameIdx int) {
	res := associate(m.tracks, detections, frameIdx, m.cfg)

	for trackIdx, detIdx := range res.matched {
		m.tracks[trackIdx].Update(detections[detIdx], frameIdx)
	}
	for _, trackIdx := range res.unmatchedTracks {
		m.tracks[trackIdx].MarkMissed()
	}
	for _, detIdx := range res.unmatchedDetections {
		m.tracks = append(m.tracks, newTrack(m.nextID, detections[detIdx]))
		m.nextID++
		m.tracksCreated++
	}

	m.prune()

	m.frameLog = append(m.frameLog, FrameSnapshot{
		FrameIdx:   frameIdx,
		Detections: detections,
	})
}

// prune removes tracks that have gone stale. An unconfirmed track is dropped
// once it misses MaxAge consecutive frames; a confirmed track earns a grace
// period for brief occlusions but is still dropped at the absolute
// MaxCoastFrames budget so long sequences cannot accumulate ghost tracks.
func (m *Manager) prune() {
	kept := m.tracks[:0]
	for _, tr := range m.tracks {
		stale := tr.TimeSinceUpdate >= m.cfg.MaxAge && tr.Hits < m.cfg.MinHits
		exhausted := tr.TimeSinceUpdate >= m.cfg.MaxCoastFrames
		if stale || exhausted {
			continue
		}
		kept = append(kept, tr)
	}
	// Release evicted tail references.
	for i := len(kept); i < len(m.tracks); i++ {
		m.tracks[i] = nil
	}
	m.tracks = kept
}

// ActiveTracks returns the tracks visible for the current frame: confirmed
// tracks (hits ≥ MinHits) plus tracks too young to judge (age < MinHits).
func (m *Manager) ActiveTracks() []*Track {
	active := make([]*Track, 0, len(m.tracks))
	for _, tr := range m.tracks {
		if tr.Hits >= m.cfg.MinHits || tr.Age < m.cfg.MinHits {
			active = append(active, tr)
		}
	}
	return active
}

// Tracks returns the full live track set in creation order.
func (m *Manager) Tracks() []*Track {
	return m.tracks
}

// ConfirmedCount returns the number of live confirmed tracks.
func (m *Manager) ConfirmedCount() int {
	count := 0
	for _, tr := range m.tracks {
		if tr.Hits >= m.cfg.MinHits {
			count++
		}
	}
	return count
}

// FrameLog returns the accumulated per-frame detection snapshots.
func (m *Manager) FrameLog() []FrameSnapshot {
	return m.frameLog
}

// TotalFrames returns the number of frames processed so far.
func (m *Manager) TotalFrames() int {
	return len(m.frameLog)
}

// TotalDetections returns the number of detections across all logged frames.
func (m *Manager) TotalDetections() int {
	total := 0
	for _, f := range m.frameLog {
		total += len(f.Detections)
	}
	return total
}

// TracksCreated returns the number of tracks spawned over the sequence,
// including ones since pruned.
func (m *Manager) TracksCreated() int {
	return m.tracksCreated
}
