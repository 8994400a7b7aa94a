package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the accident-detection
// engine. All fields are pointers so a partial JSON file only overrides the
// parameters it names; the Get* accessors supply defaults for the rest.
type TuningConfig struct {
	// Detection normalisation params
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	VehicleClasses      []string `json:"vehicle_classes,omitempty"`

	// Tracker params
	MaxTrackAge         *int     `json:"max_track_age,omitempty"`
	MinHitsToConfirm    *int     `json:"min_hits_to_confirm,omitempty"`
	MatchGate           *float64 `json:"match_gate,omitempty"`
	MaxTrackingDistance *float64 `json:"max_tracking_distance,omitempty"`
	MaxCoastMultiple    *int     `json:"max_coast_multiple,omitempty"`

	// Event detector params
	CollisionIoUThreshold *float64 `json:"collision_iou_threshold,omitempty"`
	SuddenStopThreshold   *float64 `json:"sudden_stop_threshold,omitempty"`
	ClusteringDistance    *float64 `json:"clustering_distance,omitempty"`
	ErraticAngleThreshold *float64 `json:"erratic_angle_threshold,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
// Use LoadTuningConfig to load actual values from a defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and stay under the max file size. Fields omitted from
// the JSON retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching the current directory and common parent
// directories. Panics if the file cannot be loaded — intended for tests.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,    // from cmd/
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	if c.ConfidenceThreshold != nil {
		if *c.ConfidenceThreshold < 0 || *c.ConfidenceThreshold > 1 {
			return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", *c.ConfidenceThreshold)
		}
	}
	if c.MaxTrackAge != nil && *c.MaxTrackAge < 1 {
		return fmt.Errorf("max_track_age must be at least 1, got %d", *c.MaxTrackAge)
	}
	if c.MinHitsToConfirm != nil && *c.MinHitsToConfirm < 1 {
		return fmt.Errorf("min_hits_to_confirm must be at least 1, got %d", *c.MinHitsToConfirm)
	}
	if c.MatchGate != nil && *c.MatchGate <= 0 {
		return fmt.Errorf("match_gate must be positive, got %f", *c.MatchGate)
	}
	if c.MaxTrackingDistance != nil && *c.MaxTrackingDistance <= 0 {
		return fmt.Errorf("max_tracking_distance must be positive, got %f", *c.MaxTrackingDistance)
	}
	if c.MaxCoastMultiple != nil && *c.MaxCoastMultiple < 1 {
		return fmt.Errorf("max_coast_multiple must be at least 1, got %d", *c.MaxCoastMultiple)
	}
	if c.ClusteringDistance != nil && *c.ClusteringDistance <= 0 {
		return fmt.Errorf("clustering_distance must be positive, got %f", *c.ClusteringDistance)
	}
	if c.ErraticAngleThreshold != nil {
		if *c.ErraticAngleThreshold <= 0 || *c.ErraticAngleThreshold >= 180 {
			return fmt.Errorf("erratic_angle_threshold must be in (0, 180), got %f", *c.ErraticAngleThreshold)
		}
	}
	return nil
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.3
	}
	return *c.ConfidenceThreshold
}

// GetVehicleClasses returns the vehicle class set or the default COCO subset.
func (c *TuningConfig) GetVehicleClasses() []string {
	if len(c.VehicleClasses) == 0 {
		return []string{"car", "truck", "bus", "motorcycle", "bicycle"}
	}
	return c.VehicleClasses
}

// GetMaxTrackAge returns the max_track_age value or the default.
func (c *TuningConfig) GetMaxTrackAge() int {
	if c.MaxTrackAge == nil {
		return 5
	}
	return *c.MaxTrackAge
}

// GetMinHitsToConfirm returns the min_hits_to_confirm value or the default.
func (c *TuningConfig) GetMinHitsToConfirm() int {
	if c.MinHitsToConfirm == nil {
		return 3
	}
	return *c.MinHitsToConfirm
}

// GetMatchGate returns the match_gate value or the default.
func (c *TuningConfig) GetMatchGate() float64 {
	if c.MatchGate == nil {
		return 0.6
	}
	return *c.MatchGate
}

// GetMaxTrackingDistance returns the max_tracking_distance value or the default.
func (c *TuningConfig) GetMaxTrackingDistance() float64 {
	if c.MaxTrackingDistance == nil {
		return 100.0
	}
	return *c.MaxTrackingDistance
}

// GetMaxCoastMultiple returns the max_coast_multiple value or the default.
// A confirmed track is dropped once it has coasted for
// max_coast_multiple × max_track_age consecutive frames.
func (c *TuningConfig) GetMaxCoastMultiple() int {
	if c.MaxCoastMultiple == nil {
		return 3
	}
	return *c.MaxCoastMultiple
}

// GetCollisionIoUThreshold returns the collision_iou_threshold value or the default.
func (c *TuningConfig) GetCollisionIoUThreshold() float64 {
	if c.CollisionIoUThreshold == nil {
		return 0.05
	}
	return *c.CollisionIoUThreshold
}

// GetSuddenStopThreshold returns the sudden_stop_threshold value or the default.
func (c *TuningConfig) GetSuddenStopThreshold() float64 {
	if c.SuddenStopThreshold == nil {
		return -10.0
	}
	return *c.SuddenStopThreshold
}

// GetClusteringDistance returns the clustering_distance value or the default.
func (c *TuningConfig) GetClusteringDistance() float64 {
	if c.ClusteringDistance == nil {
		return 80.0
	}
	return *c.ClusteringDistance
}

// GetErraticAngleThreshold returns the erratic_angle_threshold value (degrees)
// or the default.
func (c *TuningConfig) GetErraticAngleThreshold() float64 {
	if c.ErraticAngleThreshold == nil {
		return 60.0
	}
	return *c.ErraticAngleThreshold
}
