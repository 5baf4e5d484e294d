package config

import (
	"fmt"
	"time"

	"github.com/skillsenselab/asrkit/logger"
	"github.com/skillsenselab/asrkit/validation"
)

// Config is the top-level application configuration for an asrkit service.
//
// Example YAML:
//
//	name: asr-service
//	environment: production
//	engine:
//	  default: funasr
//	  language: zh
//	engines:
//	  funasr:
//	    api_key: ${DASHSCOPE_API_KEY}
//	    model: paraformer-v2
//	fallback:
//	  engines: [funasr, whisper]
//	  max_attempts: 4
type Config struct {
	Name        string        `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string        `yaml:"environment" mapstructure:"environment" validate:"required,oneof=development staging production"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`

	Engine   EngineSettings            `yaml:"engine" mapstructure:"engine"`
	Engines  map[string]map[string]any `yaml:"engines" mapstructure:"engines"`
	Fallback FallbackSettings          `yaml:"fallback" mapstructure:"fallback"`
	Polling  PollingSettings           `yaml:"polling" mapstructure:"polling"`
	Batch    BatchSettings             `yaml:"batch" mapstructure:"batch"`
	Output   OutputSettings            `yaml:"output" mapstructure:"output"`
}

// EngineSettings selects the primary engine and request-level defaults.
type EngineSettings struct {
	// Default names the engine used when a request does not specify one.
	Default string `yaml:"default" mapstructure:"default" validate:"required"`
	// Language is the default recognition language hint.
	Language string `yaml:"language" mapstructure:"language"`
	// CompleteOnly discards transcripts that did not reach a final state.
	CompleteOnly bool `yaml:"complete_only" mapstructure:"complete_only"`
}

// FallbackSettings controls the engine fallback chain.
type FallbackSettings struct {
	// Engines lists backup engines tried in order after the primary fails.
	Engines []string `yaml:"engines" mapstructure:"engines"`
	// MaxAttempts caps total recognition attempts across all engines.
	// Zero means one attempt per engine in the chain.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// CircuitBreaker enables per-engine circuit breaking.
	CircuitBreaker bool `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
}

// PollingSettings controls asynchronous task polling.
type PollingSettings struct {
	// Interval is the fixed delay between status polls.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	// MaxWait is the total wall-clock budget for a polled task.
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
}

// BatchSettings controls concurrent batch recognition.
type BatchSettings struct {
	// Workers bounds the number of files recognized concurrently.
	Workers int `yaml:"workers" mapstructure:"workers" validate:"gte=0"`
}

// OutputSettings controls transcript export.
type OutputSettings struct {
	// Dir is the directory exported transcripts are written to.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// Formats lists export formats: txt, srt, json.
	Formats []string `yaml:"formats" mapstructure:"formats" validate:"dive,oneof=txt srt json"`
}

// ApplyDefaults fills unset fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Logging.ServiceName == "" && c.Name != "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()

	if c.Engine.Language == "" {
		c.Engine.Language = "zh"
	}
	if c.Polling.Interval <= 0 {
		c.Polling.Interval = 2 * time.Second
	}
	if c.Polling.MaxWait <= 0 {
		c.Polling.MaxWait = 5 * time.Minute
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = 4
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "transcripts"
	}
	if len(c.Output.Formats) == 0 {
		c.Output.Formats = []string{"txt"}
	}
}

// Validate checks the configuration for structural errors. Per-field
// constraints live in validate tags; cross-field rules are checked here.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}

	v := validation.New().
		Custom(c.Polling.Interval <= c.Polling.MaxWait, "polling.interval",
			fmt.Sprintf("must not exceed polling.max_wait (%s)", c.Polling.MaxWait))
	if err := c.Logging.Validate(); err != nil {
		v.AddError("logging", err.Error())
	}
	return v.Error()
}

// EngineConfig returns the raw settings map for a named engine, or an empty
// map when none is configured.
func (c *Config) EngineConfig(name string) map[string]any {
	if c.Engines == nil {
		return map[string]any{}
	}
	if m, ok := c.Engines[name]; ok {
		return m
	}
	return map[string]any{}
}

// FallbackChain returns the full ordered engine chain: the default engine
// followed by configured fallbacks, with duplicates removed.
func (c *Config) FallbackChain() []string {
	chain := make([]string, 0, 1+len(c.Fallback.Engines))
	seen := make(map[string]bool, 1+len(c.Fallback.Engines))
	for _, name := range append([]string{c.Engine.Default}, c.Fallback.Engines...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		chain = append(chain, name)
	}
	return chain
}
