package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/dripflow/internal/rules"
)

// Output formats accepted by Config.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatHCL  = "hcl"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	FlowPath string // .json file, or .hcl file or directory
	DataPath string // recipient CSV, optional

	ConvertTo        string
	ReportFormat     string
	ConditionFeeders string

	SubmitURL     string
	SubmitTimeout time.Duration
	CampaignName  string

	EditorURL       string
	EditorNamespace string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.FlowPath == "" {
		return nil, errors.New("FlowPath is a required configuration field and cannot be empty")
	}
	if cfg.ReportFormat == "" {
		cfg.ReportFormat = FormatText
	}
	if cfg.ReportFormat != FormatText && cfg.ReportFormat != FormatJSON {
		return nil, fmt.Errorf("invalid report format %q: must be %q or %q", cfg.ReportFormat, FormatText, FormatJSON)
	}
	if cfg.ConvertTo != "" && cfg.ConvertTo != FormatJSON && cfg.ConvertTo != FormatHCL {
		return nil, fmt.Errorf("invalid conversion target %q: must be %q or %q", cfg.ConvertTo, FormatJSON, FormatHCL)
	}
	if cfg.ConditionFeeders == "" {
		cfg.ConditionFeeders = rules.ChainedPolicy.Name
	}
	if _, err := rules.PolicyByName(cfg.ConditionFeeders); err != nil {
		return nil, err
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = FormatText
	}
	if cfg.LogFormat != FormatText && cfg.LogFormat != FormatJSON {
		return nil, fmt.Errorf("invalid log format %q: must be %q or %q", cfg.LogFormat, FormatText, FormatJSON)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 30 * time.Second
	}
	return &cfg, nil
}
