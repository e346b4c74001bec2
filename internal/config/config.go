// Package config defines the unified YAML configuration: shared service
// settings, the model catalog, and per-stage policy bodies.
package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	emptyModelsErrorMessage                  = "config.models is empty"
	missingDefaultModelErrorMessage          = "no default model found (set models[].default: true)"
	rootConfigurationEmptyContentErrorFormat = "root configuration %s is empty"
	rootConfigurationUnmarshalErrorFormat    = "unmarshal root configuration %s: %w"
	stageBodyMarshalErrorFormat              = "marshal stage %s settings: %w"
	stageBodyUnmarshalErrorFormat            = "map stage %s settings: %w"
)

type Root struct {
	Common Common        `yaml:"common"`
	Models []Model       `yaml:"models"`
	Stages []StageConfig `yaml:"stages"`
}

type Common struct {
	API struct {
		Endpoint  string `yaml:"endpoint"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"api"`
	Search struct {
		Endpoint  string `yaml:"endpoint"`
		APIKeyEnv string `yaml:"api_key_env"`
		Language  string `yaml:"language"`
		Country   string `yaml:"country"`
	} `yaml:"search"`
	Currency struct {
		Endpoint  string `yaml:"endpoint"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"currency"`
	Email struct {
		APIKeyEnv   string `yaml:"api_key_env"`
		FromAddress string `yaml:"from_address"`
		FromName    string `yaml:"from_name"`
	} `yaml:"email"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Defaults struct {
		Retries            int `yaml:"retries"`
		TimeoutSeconds     int `yaml:"timeout_seconds"`
		DeadlineSeconds    int `yaml:"deadline_seconds"`
		PaceIntervalMillis int `yaml:"pace_interval_ms"`
		CacheTTLSeconds    int `yaml:"cache_ttl_seconds"`
	} `yaml:"defaults"`
}

type Model struct {
	Name                string  `yaml:"name"`
	Provider            string  `yaml:"provider"`
	ModelID             string  `yaml:"model_id"`
	Default             bool    `yaml:"default"`
	SupportsTemperature bool    `yaml:"supports_temperature"`
	DefaultTemperature  float64 `yaml:"default_temperature"`
	MaxCompletionTokens int     `yaml:"max_completion_tokens"`
}

// StageConfig carries a stage's enablement, model override, and the inline
// policy body the stage package maps onto its own settings type.
type StageConfig struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`

	Body map[string]any `yaml:",inline"`
}

// DecodeBody maps the stage's inline body onto the target settings struct.
func (stage StageConfig) DecodeBody(target any) error {
	encodedBody, marshalError := yaml.Marshal(stage.Body)
	if marshalError != nil {
		return fmt.Errorf(stageBodyMarshalErrorFormat, stage.Name, marshalError)
	}
	if err := yaml.Unmarshal(encodedBody, target); err != nil {
		return fmt.Errorf(stageBodyUnmarshalErrorFormat, stage.Name, err)
	}
	return nil
}

// LoadRoot parses the provided configuration source and validates required fields.
func LoadRoot(source RootConfigurationSource) (Root, error) {
	if len(source.Content) == 0 {
		return Root{}, fmt.Errorf(rootConfigurationEmptyContentErrorFormat, source.Reference)
	}

	var rootConfiguration Root
	if err := yaml.Unmarshal(source.Content, &rootConfiguration); err != nil {
		return Root{}, fmt.Errorf(rootConfigurationUnmarshalErrorFormat, source.Reference, err)
	}

	if len(rootConfiguration.Models) == 0 {
		return Root{}, errors.New(emptyModelsErrorMessage)
	}
	if _, ok := rootConfiguration.DefaultModel(); !ok {
		return Root{}, errors.New(missingDefaultModelErrorMessage)
	}
	return rootConfiguration, nil
}

func (root Root) DefaultModel() (Model, bool) {
	for _, modelConfiguration := range root.Models {
		if modelConfiguration.Default {
			return modelConfiguration, true
		}
	}
	return Model{}, false
}

func (root Root) FindModel(name string) (Model, bool) {
	for _, modelConfiguration := range root.Models {
		if modelConfiguration.Name == name {
			return modelConfiguration, true
		}
	}
	return Model{}, false
}

func (root Root) FindStage(name string) (StageConfig, bool) {
	for _, stage := range root.Stages {
		if stage.Name == name {
			return stage, true
		}
	}
	return StageConfig{}, false
}

// StageEnabled reports whether the named stage is present and enabled.
// Stages absent from the configuration default to enabled.
func (root Root) StageEnabled(name string) bool {
	stage, found := root.FindStage(name)
	if !found {
		return true
	}
	return stage.Enabled
}
