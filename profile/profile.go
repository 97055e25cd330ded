// Package profile loads the target profile describing the board under
// analysis and the scan parameters.
package profile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TargetProfile represents the configuration for a specific target board.
type TargetProfile struct {
	Chip     string `yaml:"chip"`
	Driver   string `yaml:"driver"`
	Language string `yaml:"language"`

	RAMStart uint32 `yaml:"ram_start"`
	RAMEnd   uint32 `yaml:"ram_end"`

	Sentinel       byte `yaml:"sentinel"`
	MergeThreshold int  `yaml:"merge_threshold"`
	AbortThreshold int  `yaml:"abort_threshold"`

	IntervalMS     int    `yaml:"interval_ms"`
	MeasureSeconds int    `yaml:"measure_seconds"`
	ListenAddr     string `yaml:"listen_addr"`
}

// Interval returns the polling interval.
func (p *TargetProfile) Interval() time.Duration {
	return time.Duration(p.IntervalMS) * time.Millisecond
}

// Deadline returns the wall-clock bound of a measuring run.
func (p *TargetProfile) Deadline() time.Duration {
	return time.Duration(p.MeasureSeconds) * time.Second
}

// LoadProfile loads a target profile from a YAML file and applies defaults.
func LoadProfile(filename string) (*TargetProfile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer file.Close()

	profile := TargetProfile{
		Driver:         "sim",
		Language:       "rust",
		Sentinel:       0x55,
		MergeThreshold: 20,
		AbortThreshold: 128,
		IntervalMS:     100,
		MeasureSeconds: 60,
	}
	if err := yaml.NewDecoder(file).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if profile.RAMEnd <= profile.RAMStart {
		return nil, fmt.Errorf("profile %s: ram_end (%#x) must be above ram_start (%#x)",
			filename, profile.RAMEnd, profile.RAMStart)
	}
	return &profile, nil
}
