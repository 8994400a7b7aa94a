// Command analyze runs the accident-analysis engine over a JSONL detection
// file (one frame object per line) and prints the fused report. With -chart
// it also renders the track trajectories to an HTML scatter plot.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/accident.report/internal/accident"
	"github.com/banshee-data/accident.report/internal/config"
	"github.com/banshee-data/accident.report/internal/detect"
)

var (
	configPath = flag.String("config", "", "Tuning config JSON (default: built-in search path)")
	chartPath  = flag.String("chart", "", "Write an HTML trajectory chart to this path")
)

// maxLineBytes caps a single JSONL frame line at 4MB.
const maxLineBytes = 4 << 20

type output struct {
	Report  accident.Report       `json:"report"`
	Summary accident.TrackSummary `json:"summary"`
}

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: analyze [flags] <detections.jsonl>\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	var tuning *config.TuningConfig
	var err error
	if *configPath != "" {
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	} else {
		tuning = config.MustLoadDefaultConfig()
	}

	analyzer := accident.NewAnalyzer(tuning)
	if err := processFile(analyzer, flag.Arg(0)); err != nil {
		log.Fatalf("Failed to process %s: %v", flag.Arg(0), err)
	}

	out := output{
		Report:  analyzer.Finalize(),
		Summary: analyzer.Summary(),
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode report: %v", err)
	}
	fmt.Println(string(encoded))

	if *chartPath != "" {
		if err := writeChart(analyzer, out.Report, *chartPath); err != nil {
			log.Fatalf("Failed to write chart: %v", err)
		}
		log.Printf("wrote trajectory chart to %s", *chartPath)
	}
}

// processFile feeds each JSONL frame line into the analyzer. Frames must be
// in ascending index order.
func processFile(analyzer *accident.Analyzer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	lastIdx := -1
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var frame detect.RawFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if frame.FrameIdx <= lastIdx {
			return fmt.Errorf("line %d: frame %d out of order", lineNo, frame.FrameIdx)
		}
		lastIdx = frame.FrameIdx

		analyzer.ProcessFrame(frame)
	}
	return scanner.Err()
}

// writeChart renders every track's trajectory as one scatter series, with
// point size distinguishing confirmed tracks from tentative ones.
func writeChart(analyzer *accident.Analyzer, report accident.Report, path string) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Track Trajectories",
			Width:     "900px",
			Height:    "900px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "Track Trajectories",
			Subtitle: fmt.Sprintf("accident=%v confidence=%.2f frames=%d",
				report.HasAccident, report.Confidence, report.TotalFrames),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y"}),
	)

	for _, tr := range analyzer.Tracks() {
		positions := tr.Positions()
		data := make([]opts.ScatterData, 0, len(positions))
		for _, p := range positions {
			data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
		}

		chartOpts := opts.ScatterChart{SymbolSize: 4}
		if tr.HistoryLength() >= 3 {
			chartOpts.SymbolSize = 8
		}
		name := fmt.Sprintf("track %d (%s)", tr.ID, tr.Class)
		scatter.AddSeries(name, data, charts.WithScatterChartOpts(chartOpts))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return scatter.Render(f)
}
