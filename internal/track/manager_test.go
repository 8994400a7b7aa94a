package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/accident.report/internal/detect"
)

func testConfig() Config {
	return Config{
		MaxAge:              5,
		MinHits:             3,
		MatchGate:           0.6,
		MaxTrackingDistance: 100,
		MaxCoastFrames:      15,
	}
}

func TestManagerCreatesTrackPerUnmatchedDetection(t *testing.T) {
	t.Parallel()

	m := NewManager(testConfig())
	m.ProcessFrame([]detect.Detection{det(0, 0, 0), det(200, 200, 0)}, 0)

	require.Len(t, m.Tracks(), 2)
	assert.Equal(t, int64(1), m.Tracks()[0].ID)
	assert.Equal(t, int64(2), m.Tracks()[1].ID)
	assert.Equal(t, 2, m.TracksCreated())
}

func TestManagerMatchesAcrossFrames(t *testing.T) {
	t.Parallel()

	m := NewManager(testConfig())
	m.ProcessFrame([]detect.Detection{det(0, 0, 0)}, 0)
	m.ProcessFrame([]detect.Detection{det(5, 0, 1)}, 1)
	m.ProcessFrame([]detect.Detection{det(10, 0, 2)}, 2)

	require.Len(t, m.Tracks(), 1)
	tr := m.Tracks()[0]
	assert.Equal(t, 3, tr.Hits)
	assert.Equal(t, 0, tr.TimeSinceUpdate)
	assert.Equal(t, 1, m.ConfirmedCount())
}

func TestManagerDistantDetectionSpawnsNewTrack(t *testing.T) {
	t.Parallel()

	m := NewManager(testConfig())
	m.ProcessFrame([]detect.Detection{det(0, 0, 0)}, 0)
	// Far beyond the gate: cost ≥ 0.5·(dist/100) + 0.3·1 + 0.2·1 > 0.6.
	m.ProcessFrame([]detect.Detection{det(500, 500, 1)}, 1)

	assert.Len(t, m.Tracks(), 2)
}

func TestManagerPrunesUnconfirmedStaleTrack(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	m := NewManager(cfg)
	m.ProcessFrame([]detect.Detection{det(0, 0, 0)}, 0)
	require.Len(t, m.Tracks(), 1)

	// hits == 1 < MinHits: pruned exactly when TimeSinceUpdate reaches MaxAge.
	for i := 1; i < cfg.MaxAge; i++ {
		m.ProcessFrame(nil, i)
		assert.Len(t, m.Tracks(), 1, "frame %d", i)
	}
	m.ProcessFrame(nil, cfg.MaxAge)
	assert.Empty(t, m.Tracks())
}

func TestManagerConfirmedTrackSurvivesOcclusion(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	m := NewManager(cfg)
	for i := 0; i < 4; i++ {
		m.ProcessFrame([]detect.Detection{det(float64(i*2), 0, i)}, i)
	}
	require.Equal(t, 1, m.ConfirmedCount())

	// A confirmed track outlasts MaxAge misses...
	for i := 4; i < 4+cfg.MaxAge+2; i++ {
		m.ProcessFrame(nil, i)
	}
	assert.Len(t, m.Tracks(), 1)

	// ...but not the absolute coast budget.
	for i := 11; i < 4+cfg.MaxCoastFrames; i++ {
		m.ProcessFrame(nil, i)
	}
	assert.Empty(t, m.Tracks())
}

func TestManagerActiveTracksPolicy(t *testing.T) {
	t.Parallel()

	m := NewManager(testConfig())
	m.ProcessFrame([]detect.Detection{det(0, 0, 0)}, 0)

	// Brand-new track: age 0 < MinHits, so optimistically visible.
	assert.Len(t, m.ActiveTracks(), 1)

	// Aged past MinHits without confirmation: hidden (until pruned).
	m.ProcessFrame(nil, 1)
	m.ProcessFrame(nil, 2)
	m.ProcessFrame(nil, 3)
	require.Len(t, m.Tracks(), 1)
	assert.Empty(t, m.ActiveTracks())
}

func TestManagerCrossingTargetsKeepIdentity(t *testing.T) {
	t.Parallel()

	m := NewManager(testConfig())
	// Two cars converging; optimal assignment keeps each track on its own
	// trajectory where greedy matching could swap them.
	m.ProcessFrame([]detect.Detection{det(0, 0, 0), det(40, 0, 0)}, 0)
	m.ProcessFrame([]detect.Detection{det(8, 0, 1), det(32, 0, 1)}, 1)
	m.ProcessFrame([]detect.Detection{det(16, 0, 2), det(24, 0, 2)}, 2)

	require.Len(t, m.Tracks(), 2)
	left, right := m.Tracks()[0], m.Tracks()[1]
	assert.InDelta(t, 16.0, left.LastPosition().X, 1e-9)
	assert.InDelta(t, 24.0, right.LastPosition().X, 1e-9)
	assert.Equal(t, 3, left.Hits)
	assert.Equal(t, 3, right.Hits)
}

func TestManagerFrameLog(t *testing.T) {
	t.Parallel()

	m := NewManager(testConfig())
	m.ProcessFrame([]detect.Detection{det(0, 0, 0), det(50, 50, 0)}, 0)
	m.ProcessFrame(nil, 1)
	m.ProcessFrame([]detect.Detection{det(5, 0, 2)}, 2)

	assert.Equal(t, 3, m.TotalFrames())
	assert.Equal(t, 3, m.TotalDetections())
	require.Len(t, m.FrameLog(), 3)
	assert.Equal(t, 1, m.FrameLog()[1].FrameIdx)
	assert.Empty(t, m.FrameLog()[1].Detections)
}

func TestAssociateEmptySides(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	t.Run("no tracks", func(t *testing.T) {
		t.Parallel()
		res := associate(nil, []detect.Detection{det(0, 0, 0)}, 0, cfg)
		assert.Empty(t, res.matched)
		assert.Equal(t, []int{0}, res.unmatchedDetections)
	})

	t.Run("no detections", func(t *testing.T) {
		t.Parallel()
		tr := newTrack(1, det(0, 0, 0))
		res := associate([]*Track{tr}, nil, 1, cfg)
		assert.Empty(t, res.matched)
		assert.Equal(t, []int{0}, res.unmatchedTracks)
	})
}

func TestPairCostClassMismatchPenalty(t *testing.T) {
	t.Parallel()

	tr := newTrack(1, det(0, 0, 0))
	same := det(0, 0, 1)
	other := det(0, 0, 1)
	other.Class = "bus"

	sameCost := pairCost(tr.Predict(1), tr.LastBox(), tr.Class, same, 100)
	otherCost := pairCost(tr.Predict(1), tr.LastBox(), tr.Class, other, 100)
	assert.InDelta(t, 0.2, otherCost-sameCost, 1e-9)
}
