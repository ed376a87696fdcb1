package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelSettings selects a completion model and its sampling parameters
type ModelSettings struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// PromptLimits bounds the size of prompt inputs (characters)
type PromptLimits struct {
	DescriptionChars int `yaml:"description_chars"`
	OCRChars         int `yaml:"ocr_chars"`
	CaptionChars     int `yaml:"caption_chars"`
	MaxDocuments     int `yaml:"max_documents"`
}

// AnalysisSettings tunes the AI analysis stages. Defaults match the
// production values; a YAML file can override any field.
type AnalysisSettings struct {
	FirstPass  ModelSettings `yaml:"first_pass"`
	SecondPass ModelSettings `yaml:"second_pass"`

	// Vision settings for document extraction
	VisionModel      string `yaml:"vision_model"`
	CaptionMaxTokens int    `yaml:"caption_max_tokens"`
	OCRMaxTokens     int    `yaml:"ocr_max_tokens"`
	PDFMaxTokens     int    `yaml:"pdf_max_tokens"`

	Limits PromptLimits `yaml:"limits"`

	// ProcessingDeadlineMinutes is how long a record may sit in
	// "processing" before the sweeper flips it to "failed".
	ProcessingDeadlineMinutes int `yaml:"processing_deadline_minutes"`
	SweepIntervalMinutes      int `yaml:"sweep_interval_minutes"`
}

// DefaultAnalysisSettings returns the built-in defaults
func DefaultAnalysisSettings() *AnalysisSettings {
	return &AnalysisSettings{
		FirstPass: ModelSettings{
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   4000,
		},
		SecondPass: ModelSettings{
			Model:       "gpt-4o",
			Temperature: 0.2,
			MaxTokens:   4000,
		},
		VisionModel:      "gpt-4o-mini",
		CaptionMaxTokens: 500,
		OCRMaxTokens:     1000,
		PDFMaxTokens:     4000,
		Limits: PromptLimits{
			DescriptionChars: 1000,
			OCRChars:         500,
			CaptionChars:     300,
			MaxDocuments:     5,
		},
		ProcessingDeadlineMinutes: 30,
		SweepIntervalMinutes:      5,
	}
}

// LoadAnalysisSettings returns the defaults overlaid with the YAML file at
// path, if one is given.
func LoadAnalysisSettings(path string) (*AnalysisSettings, error) {
	settings := DefaultAnalysisSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis settings: %w", err)
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse analysis settings: %w", err)
	}
	return settings, nil
}
