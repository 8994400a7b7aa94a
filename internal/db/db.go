// Package db persists analysis results and accident records in SQLite.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/accident.report/internal/accident"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the SQLite database at path. Schema is
// managed by golang-migrate; callers should run MigrateUp before use.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite is single-writer; serialise access through one conn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

// AnalysisRecord is one stored analysis run: the verdict plus enough
// aggregate counters to list results without unmarshalling the full report.
type AnalysisRecord struct {
	ID              string           `json:"id"`
	Source          string           `json:"source"`
	HasAccident     bool             `json:"has_accident"`
	Confidence      float64          `json:"confidence"`
	FrameRatio      float64          `json:"frame_ratio"`
	TotalFrames     int              `json:"total_frames"`
	TotalDetections int              `json:"total_detections"`
	ConfirmedTracks int              `json:"confirmed_tracks"`
	CollisionCount  int              `json:"collision_count"`
	SuddenStopCount int              `json:"sudden_stop_count"`
	ErraticCount    int              `json:"erratic_count"`
	ClusteringCount int              `json:"clustering_count"`
	Report          *accident.Report `json:"report,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NewAnalysisRecord builds a record from a fused report.
func NewAnalysisRecord(id, source string, report accident.Report) AnalysisRecord {
	r := report
	return AnalysisRecord{
		ID:              id,
		Source:          source,
		HasAccident:     r.HasAccident,
		Confidence:      r.Confidence,
		FrameRatio:      r.AccidentFrameRatio,
		TotalFrames:     r.TotalFrames,
		TotalDetections: r.TotalDetections,
		ConfirmedTracks: r.ConfirmedTracks,
		CollisionCount:  r.IndicatorCounts[accident.IndicatorCollision],
		SuddenStopCount: r.IndicatorCounts[accident.IndicatorSuddenStop],
		ErraticCount:    r.IndicatorCounts[accident.IndicatorErratic],
		ClusteringCount: r.IndicatorCounts[accident.IndicatorClustering],
		Report:          &r,
	}
}

// RecordAnalysis stores an analysis run. When the report carries a positive
// verdict an accident row is written in the same transaction.
func (db *DB) RecordAnalysis(ctx context.Context, rec AnalysisRecord) error {
	if rec.Report == nil {
		return fmt.Errorf("analysis record %s has no report", rec.ID)
	}
	reportJSON, err := json.Marshal(rec.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analyses (
			id, source, has_accident, confidence, frame_ratio,
			total_frames, total_detections, confirmed_tracks,
			collision_count, sudden_stop_count, erratic_count, clustering_count,
			report_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Source, rec.HasAccident, rec.Confidence, rec.FrameRatio,
		rec.TotalFrames, rec.TotalDetections, rec.ConfirmedTracks,
		rec.CollisionCount, rec.SuddenStopCount, rec.ErraticCount, rec.ClusteringCount,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	if rec.HasAccident {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO accidents (analysis_id, severity, status)
			VALUES (?, ?, ?)`,
			rec.ID, rec.Report.Severity(), rec.Report.Status(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert accident: %w", err)
		}
	}

	return tx.Commit()
}

// GetAnalysis fetches one analysis by id, including the full report.
// Returns sql.ErrNoRows when no such analysis exists.
func (db *DB) GetAnalysis(ctx context.Context, id string) (AnalysisRecord, error) {
	var rec AnalysisRecord
	var reportJSON string
	err := db.QueryRowContext(ctx, `
		SELECT id, source, has_accident, confidence, frame_ratio,
			total_frames, total_detections, confirmed_tracks,
			collision_count, sudden_stop_count, erratic_count, clustering_count,
			report_json, created_at
		FROM analyses WHERE id = ?`, id).Scan(
		&rec.ID, &rec.Source, &rec.HasAccident, &rec.Confidence, &rec.FrameRatio,
		&rec.TotalFrames, &rec.TotalDetections, &rec.ConfirmedTracks,
		&rec.CollisionCount, &rec.SuddenStopCount, &rec.ErraticCount, &rec.ClusteringCount,
		&reportJSON, &rec.CreatedAt,
	)
	if err != nil {
		return AnalysisRecord{}, err
	}

	var report accident.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return AnalysisRecord{}, fmt.Errorf("failed to unmarshal stored report %s: %w", id, err)
	}
	rec.Report = &report
	return rec, nil
}

// ListAnalyses returns up to limit most recent analyses, newest first. The
// full report is omitted from list rows.
func (db *DB) ListAnalyses(ctx context.Context, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, source, has_accident, confidence, frame_ratio,
			total_frames, total_detections, confirmed_tracks,
			collision_count, sudden_stop_count, erratic_count, clustering_count,
			created_at
		FROM analyses
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []AnalysisRecord{}
	for rows.Next() {
		var rec AnalysisRecord
		if err := rows.Scan(
			&rec.ID, &rec.Source, &rec.HasAccident, &rec.Confidence, &rec.FrameRatio,
			&rec.TotalFrames, &rec.TotalDetections, &rec.ConfirmedTracks,
			&rec.CollisionCount, &rec.SuddenStopCount, &rec.ErraticCount, &rec.ClusteringCount,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AccidentRecord is one stored accident derived from a positive analysis.
type AccidentRecord struct {
	ID         int64     `json:"id"`
	AnalysisID string    `json:"analysis_id"`
	Severity   string    `json:"severity"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListAccidents returns up to limit most recent accident records.
func (db *DB) ListAccidents(ctx context.Context, limit int) ([]AccidentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, analysis_id, severity, status, created_at
		FROM accidents
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []AccidentRecord{}
	for rows.Next() {
		var rec AccidentRecord
		if err := rows.Scan(&rec.ID, &rec.AnalysisID, &rec.Severity, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
