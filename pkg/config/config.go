// Package config loads engine configuration from engine.yaml plus
// environment variables. YAML values may reference the environment with
// {{.VAR}} template syntax; defaults are merged underneath user values.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Config is the resolved engine configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Ollama        OllamaConfig        `yaml:"ollama"`
	Classifier    ClassifierConfig    `yaml:"classifier"`
	Prescription  PrescriptionConfig  `yaml:"prescription"`
	Insurance     InsuranceConfig     `yaml:"insurance"`
	Session       SessionConfig       `yaml:"session"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// OllamaConfig holds LLM settings. The engine talks to Ollama over HTTP
// for intent analysis, disambiguation, and the secondary vision
// evaluation.
type OllamaConfig struct {
	Host          string        `yaml:"host"`
	Model         string        `yaml:"model"`
	VisionModel   string        `yaml:"vision_model"`
	Timeout       time.Duration `yaml:"timeout"`
	VisionTimeout time.Duration `yaml:"vision_timeout"`
}

// ClassifierConfig points at the primary disease-classification service.
type ClassifierConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// PrescriptionConfig points at the prescription engine.
type PrescriptionConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// InsuranceConfig points at the insurance tool service. Certificate
// generation involves PDF rendering upstream and gets a longer budget.
type InsuranceConfig struct {
	URL                string        `yaml:"url"`
	Timeout            time.Duration `yaml:"timeout"`
	CertificateTimeout time.Duration `yaml:"certificate_timeout"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// ObservabilityConfig holds OpenTelemetry exporter settings. An empty
// endpoint disables the OTLP exporter; spans and metrics still record
// locally for tests.
type ObservabilityConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Port: "8080"},
		Ollama: OllamaConfig{
			Host:          "http://localhost:11434",
			Model:         "llama3.1:8b",
			VisionModel:   "llava:13b",
			Timeout:       30 * time.Second,
			VisionTimeout: 120 * time.Second,
		},
		Classifier: ClassifierConfig{
			URL:     "http://localhost:8001",
			Timeout: 30 * time.Second,
		},
		Prescription: PrescriptionConfig{
			URL:     "http://localhost:8081",
			Timeout: 30 * time.Second,
		},
		Insurance: InsuranceConfig{
			URL:                "http://localhost:8002",
			Timeout:            30 * time.Second,
			CertificateTimeout: 60 * time.Second,
		},
		Session: SessionConfig{
			TTL:             24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Observability: ObservabilityConfig{
			ServiceName: "sasya-engine",
		},
	}
}

// Load reads the YAML file at path, expands environment references,
// merges defaults, applies documented environment overrides, and
// validates the result. A missing file is not an error; defaults plus
// environment apply.
func Load(path string) (*Config, error) {
	cfg := Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		data = ExpandEnv(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		slog.Warn("Config file not found, using defaults", "path", path)
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	def := defaults()
	if err := mergo.Merge(&cfg, def); err != nil {
		return nil, fmt.Errorf("failed to merge config defaults: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides maps the documented environment inputs onto the
// config. These take precedence over YAML so deployments can point at
// different upstreams without editing files.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Ollama.Host = v
	}
	if v := os.Getenv("CLASSIFIER_URL"); v != "" {
		cfg.Classifier.URL = v
	}
	if v := os.Getenv("PRESCRIPTION_ENGINE_URL"); v != "" {
		cfg.Prescription.URL = v
	}
	if v := os.Getenv("SASYA_AROGYA_MCP_URL"); v != "" {
		cfg.Insurance.URL = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Observability.OTLPEndpoint = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must not be empty")
	}
	if c.Ollama.Host == "" {
		return fmt.Errorf("ollama.host must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"ollama.timeout":                c.Ollama.Timeout,
		"ollama.vision_timeout":         c.Ollama.VisionTimeout,
		"classifier.timeout":            c.Classifier.Timeout,
		"prescription.timeout":          c.Prescription.Timeout,
		"insurance.timeout":             c.Insurance.Timeout,
		"insurance.certificate_timeout": c.Insurance.CertificateTimeout,
		"session.ttl":                   c.Session.TTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
