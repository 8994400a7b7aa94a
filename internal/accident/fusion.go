package accident

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Indicator weights for fusion. A collision carries full weight; the softer
// behavioural signals are discounted.
var indicatorWeights = map[IndicatorType]float64{
	IndicatorCollision:  1.0,
	IndicatorSuddenStop: 0.8,
	IndicatorErratic:    0.75,
	IndicatorClustering: 0.6,
}

// defaultIndicatorWeight applies to indicator types without an entry above.
const defaultIndicatorWeight = 0.5

// weightFor returns the fusion weight for an indicator type.
func weightFor(t IndicatorType) float64 {
	if w, ok := indicatorWeights[t]; ok {
		return w
	}
	return defaultIndicatorWeight
}

// Fuse aggregates all indicators from a processed sequence into a single
// verdict and fused confidence. totalFrames is the number of logged frames;
// zero indicators (or zero frames) yield a false verdict with confidence 0.
//
// The verdict rule is deliberately disjunctive: any one strong signal, or a
// sustained pattern of weaker ones, is enough. Missing an accident costs
// more than a false alarm.
func Fuse(indicators []Indicator, totalFrames int) Report {
	report := Report{
		TotalFrames:      totalFrames,
		Indicators:       indicators,
		IndicatorCounts:  make(map[IndicatorType]int),
		SuspiciousFrames: []int{},
	}
	if len(indicators) == 0 {
		return report
	}

	weighted := make([]float64, len(indicators))
	framesSeen := make(map[int]bool)
	for i, ind := range indicators {
		weighted[i] = ind.Confidence * weightFor(ind.Type)
		report.IndicatorCounts[ind.Type]++
		framesSeen[ind.FrameIdx] = true
	}

	maxWeighted := weighted[0]
	for _, w := range weighted[1:] {
		if w > maxWeighted {
			maxWeighted = w
		}
	}
	final := 0.6*maxWeighted + 0.4*stat.Mean(weighted, nil)

	for f := range framesSeen {
		report.SuspiciousFrames = append(report.SuspiciousFrames, f)
	}
	sort.Ints(report.SuspiciousFrames)

	var ratio float64
	if totalFrames > 0 {
		ratio = float64(len(framesSeen)) / float64(totalFrames)
	}

	collisions := report.IndicatorCounts[IndicatorCollision]
	erratics := report.IndicatorCounts[IndicatorErratic]

	report.Confidence = final
	report.AccidentFrameRatio = ratio
	report.HasAccident = final > 0.50 ||
		(ratio > 0.20 && final > 0.40) ||
		collisions > 0 ||
		(erratics > 10 && final > 0.35) ||
		(ratio > 0.70 && final > 0.30)

	return report
}
