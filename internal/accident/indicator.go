// Package accident implements the behavioural event detectors and the
// confidence-fusion decision rule layered on top of the tracking engine.
package accident

// IndicatorType tags one kind of behavioural anomaly.
type IndicatorType string

const (
	IndicatorCollision  IndicatorType = "collision"
	IndicatorSuddenStop IndicatorType = "sudden_stop"
	IndicatorErratic    IndicatorType = "erratic_trajectory"
	IndicatorClustering IndicatorType = "vehicle_clustering"
)

// Indicator is one timestamped anomaly emitted by a single detector. Type
// selects which payload fields are populated; the zero value of the others
// is omitted from JSON.
type Indicator struct {
	Type       IndicatorType `json:"type"`
	FrameIdx   int           `json:"frame_idx"`
	Confidence float64       `json:"confidence"`

	// Collision payload
	TrackIDs []int64 `json:"track_ids,omitempty"`
	IoU      float64 `json:"iou,omitempty"`

	// Sudden-stop payload
	TrackID       int64   `json:"track_id,omitempty"`
	VelocityDelta float64 `json:"velocity_delta,omitempty"`
	VehicleClass  string  `json:"vehicle_class,omitempty"`

	// Erratic-trajectory payload
	MaxAngleDeg  float64 `json:"max_angle_deg,omitempty"`
	MeanAngleDeg float64 `json:"mean_angle_deg,omitempty"`

	// Clustering payload
	VehicleCount int `json:"vehicle_count,omitempty"`
	ClosePairs   int `json:"close_pairs,omitempty"`
}

// Report is the aggregate verdict over a full processed sequence.
type Report struct {
	HasAccident        bool                  `json:"has_accident"`
	Confidence         float64               `json:"confidence"`
	AccidentFrameRatio float64               `json:"accident_frame_ratio"`
	SuspiciousFrames   []int                 `json:"suspicious_frames"`
	TotalFrames        int                   `json:"total_frames"`
	Indicators         []Indicator           `json:"indicators"`
	IndicatorCounts    map[IndicatorType]int `json:"indicator_counts"`
	ConfirmedTracks    int                   `json:"confirmed_tracks"`
	TotalDetections    int                   `json:"total_detections"`
}

// Severity grades a positive verdict for downstream storage.
func (r Report) Severity() string {
	if r.Confidence > 0.8 {
		return "moderate"
	}
	return "minor"
}

// Status maps the fused confidence to the review status a new accident
// record starts in.
func (r Report) Status() string {
	if r.Confidence > 0.85 {
		return "confirmed"
	}
	return "reported"
}

// TrackSummary is the per-track statistics block reported alongside the
// verdict for storage or display.
type TrackSummary struct {
	TracksCreated   int            `json:"tracks_created"`
	ConfirmedTracks int            `json:"confirmed_tracks"`
	VehicleCounts   map[string]int `json:"vehicle_counts"`
	AvgTrackLength  float64        `json:"avg_track_length"`
	AvgConfidence   float64        `json:"avg_confidence"`
	TotalDetections int            `json:"total_detections"`
	TotalFrames     int            `json:"total_frames"`
}
