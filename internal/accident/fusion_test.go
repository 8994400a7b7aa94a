package accident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuseEmpty(t *testing.T) {
	t.Parallel()

	report := Fuse(nil, 0)
	assert.False(t, report.HasAccident)
	assert.Equal(t, 0.0, report.Confidence)
	assert.Equal(t, 0.0, report.AccidentFrameRatio)
	assert.Empty(t, report.SuspiciousFrames)
}

func TestFuseWeightedFormula(t *testing.T) {
	t.Parallel()

	indicators := []Indicator{
		{Type: IndicatorCollision, FrameIdx: 1, Confidence: 0.8},  // weighted 0.80
		{Type: IndicatorSuddenStop, FrameIdx: 2, Confidence: 0.5}, // weighted 0.40
	}
	report := Fuse(indicators, 10)

	// final = 0.6·max + 0.4·mean = 0.6·0.80 + 0.4·0.60 = 0.72
	assert.InDelta(t, 0.72, report.Confidence, 1e-9)
	assert.InDelta(t, 0.2, report.AccidentFrameRatio, 1e-9)
	assert.Equal(t, []int{1, 2}, report.SuspiciousFrames)
	assert.Equal(t, 1, report.IndicatorCounts[IndicatorCollision])
	assert.Equal(t, 1, report.IndicatorCounts[IndicatorSuddenStop])
}

func TestFuseUnknownTypeWeight(t *testing.T) {
	t.Parallel()

	report := Fuse([]Indicator{{Type: "mystery", FrameIdx: 0, Confidence: 0.8}}, 1)
	// weighted = 0.8 × 0.5 default weight = 0.40
	assert.InDelta(t, 0.40, report.Confidence, 1e-9)
}

func TestFuseVerdictBranches(t *testing.T) {
	t.Parallel()

	t.Run("final above half", func(t *testing.T) {
		t.Parallel()
		report := Fuse([]Indicator{{Type: IndicatorSuddenStop, FrameIdx: 0, Confidence: 0.9}}, 100)
		// weighted 0.72, final 0.72 > 0.50
		assert.True(t, report.HasAccident)
	})

	t.Run("any collision", func(t *testing.T) {
		t.Parallel()
		report := Fuse([]Indicator{{Type: IndicatorCollision, FrameIdx: 0, Confidence: 0.3}}, 100)
		// final = 0.30 fails every confidence branch; collision count decides.
		assert.InDelta(t, 0.30, report.Confidence, 1e-9)
		assert.True(t, report.HasAccident)
	})

	t.Run("sustained moderate ratio", func(t *testing.T) {
		t.Parallel()
		indicators := make([]Indicator, 3)
		for i := range indicators {
			indicators[i] = Indicator{Type: IndicatorSuddenStop, FrameIdx: i, Confidence: 0.55}
		}
		// weighted 0.44 each → final 0.44 ≤ 0.50; ratio 3/10 > 0.20 and 0.44 > 0.40.
		report := Fuse(indicators, 10)
		assert.InDelta(t, 0.44, report.Confidence, 1e-9)
		assert.True(t, report.HasAccident)
	})

	t.Run("many erratic indicators", func(t *testing.T) {
		t.Parallel()
		indicators := make([]Indicator, 11)
		for i := range indicators {
			indicators[i] = Indicator{Type: IndicatorErratic, FrameIdx: i, Confidence: 0.5}
		}
		// weighted 0.375 each → final 0.375; ratio 11/100 ≤ 0.20; erratic count 11 > 10
		// and final > 0.35.
		report := Fuse(indicators, 100)
		assert.InDelta(t, 0.375, report.Confidence, 1e-9)
		assert.True(t, report.HasAccident)
	})

	t.Run("dominant ratio with weak confidence", func(t *testing.T) {
		t.Parallel()
		indicators := make([]Indicator, 8)
		for i := range indicators {
			indicators[i] = Indicator{Type: "faint", FrameIdx: i, Confidence: 0.65}
		}
		// weighted 0.325 each → final 0.325 > 0.30; ratio 8/10 > 0.70.
		report := Fuse(indicators, 10)
		assert.InDelta(t, 0.325, report.Confidence, 1e-9)
		assert.True(t, report.HasAccident)
	})

	t.Run("no branch fires", func(t *testing.T) {
		t.Parallel()
		report := Fuse([]Indicator{{Type: IndicatorErratic, FrameIdx: 0, Confidence: 0.5}}, 100)
		// final 0.375 ≤ 0.50; ratio 0.01; one erratic; nothing triggers.
		assert.False(t, report.HasAccident)
	})
}

func TestFuseDistinctFrameCounting(t *testing.T) {
	t.Parallel()

	indicators := []Indicator{
		{Type: IndicatorSuddenStop, FrameIdx: 4, Confidence: 0.5},
		{Type: IndicatorClustering, FrameIdx: 4, Confidence: 0.6},
		{Type: IndicatorErratic, FrameIdx: 9, Confidence: 0.5},
	}
	report := Fuse(indicators, 10)
	// Two distinct suspicious frames out of ten.
	assert.Equal(t, []int{4, 9}, report.SuspiciousFrames)
	assert.InDelta(t, 0.2, report.AccidentFrameRatio, 1e-9)
}
