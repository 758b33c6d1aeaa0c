package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"caregraph/internal/risk"
)

type ProjectConfig struct {
	Project  string         `yaml:"project"`
	Version  int            `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	Sources  []string       `yaml:"sources"`
	Exclude  []string       `yaml:"exclude"`
	Model    ModelConfig    `yaml:"model"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ModelConfig overrides the rule-based model's weights and windows.
// Pointer fields distinguish "not set" from an explicit zero.
type ModelConfig struct {
	BaseRisk                *float64 `yaml:"base_risk"`
	RecentUseWindowDays     *int     `yaml:"recent_use_window_days"`
	RecentUseWeight         *float64 `yaml:"recent_use_weight"`
	NegativeEventWindowDays *int     `yaml:"negative_event_window_days"`
	NegativeEventWeight     *float64 `yaml:"negative_event_weight"`
	NegativeImpactThreshold *float64 `yaml:"negative_impact_threshold"`
	ActiveTreatmentWeight   *float64 `yaml:"active_treatment_weight"`
	SobrietyThresholdDays   *int     `yaml:"sobriety_threshold_days"`
	SobrietyWeight          *float64 `yaml:"sobriety_weight"`
}

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	case "":
		return fmt.Errorf("database driver is required")
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return fmt.Errorf("database dsn is required")
	}
	return validateModelConfig(&cfg.Model)
}

func validateModelConfig(m *ModelConfig) error {
	if m.BaseRisk != nil && (*m.BaseRisk < 0.0 || *m.BaseRisk > 1.0) {
		return fmt.Errorf("model base_risk %v outside [0, 1]", *m.BaseRisk)
	}
	for name, days := range map[string]*int{
		"recent_use_window_days":     m.RecentUseWindowDays,
		"negative_event_window_days": m.NegativeEventWindowDays,
		"sobriety_threshold_days":    m.SobrietyThresholdDays,
	} {
		if days != nil && *days <= 0 {
			return fmt.Errorf("model %s must be positive", name)
		}
	}
	if m.NegativeImpactThreshold != nil && (*m.NegativeImpactThreshold < -1.0 || *m.NegativeImpactThreshold > 0.0) {
		return fmt.Errorf("model negative_impact_threshold %v outside [-1, 0]", *m.NegativeImpactThreshold)
	}
	return nil
}

// RuleWeights resolves the model section over the reference defaults.
func (cfg *ProjectConfig) RuleWeights() risk.RuleWeights {
	w := risk.DefaultRuleWeights()
	m := cfg.Model
	if m.BaseRisk != nil {
		w.BaseRisk = *m.BaseRisk
	}
	if m.RecentUseWindowDays != nil {
		w.RecentUseWindowDays = *m.RecentUseWindowDays
	}
	if m.RecentUseWeight != nil {
		w.RecentUseWeight = *m.RecentUseWeight
	}
	if m.NegativeEventWindowDays != nil {
		w.NegativeEventWindowDays = *m.NegativeEventWindowDays
	}
	if m.NegativeEventWeight != nil {
		w.NegativeEventWeight = *m.NegativeEventWeight
	}
	if m.NegativeImpactThreshold != nil {
		w.NegativeImpactThreshold = *m.NegativeImpactThreshold
	}
	if m.ActiveTreatmentWeight != nil {
		w.ActiveTreatmentWeight = *m.ActiveTreatmentWeight
	}
	if m.SobrietyThresholdDays != nil {
		w.SobrietyThresholdDays = *m.SobrietyThresholdDays
	}
	if m.SobrietyWeight != nil {
		w.SobrietyWeight = *m.SobrietyWeight
	}
	return w
}
