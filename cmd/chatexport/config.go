package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the binary's YAML configuration. Credentials paths may be
// overridden with GOOGLE_APPLICATION_CREDENTIALS-style environment settings
// handled by the client libraries themselves.
type Config struct {
	Bridge struct {
		BaseURL        string `yaml:"baseUrl"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
	} `yaml:"bridge"`

	Channel struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"channel"`

	Ingestion struct {
		PageSize           int  `yaml:"pageSize"`
		DeltaFetchLimit    int  `yaml:"deltaFetchLimit"`
		DisableDeltaPaging bool `yaml:"disableDeltaPaging"`
	} `yaml:"ingestion"`

	Watermark struct {
		Backend string `yaml:"backend"` // file, firestore, or redis
		File    struct {
			Path string `yaml:"path"`
		} `yaml:"file"`
		Firestore struct {
			ProjectID  string `yaml:"projectId"`
			Collection string `yaml:"collection"`
			Document   string `yaml:"document"`
		} `yaml:"firestore"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Key      string `yaml:"key"`
		} `yaml:"redis"`
	} `yaml:"watermark"`

	Sink struct {
		Backend string `yaml:"backend"` // csv, sheets, gcs, or bigquery
		CSV     struct {
			Path string `yaml:"path"`
		} `yaml:"csv"`
		Sheets struct {
			SpreadsheetID   string `yaml:"spreadsheetId"`
			SheetName       string `yaml:"sheetName"`
			CredentialsFile string `yaml:"credentialsFile"`
		} `yaml:"sheets"`
		GCS struct {
			Bucket string `yaml:"bucket"`
			Object string `yaml:"object"`
		} `yaml:"gcs"`
		BigQuery struct {
			ProjectID       string `yaml:"projectId"`
			Dataset         string `yaml:"dataset"`
			Table           string `yaml:"table"`
			CredentialsFile string `yaml:"credentialsFile"`
		} `yaml:"bigquery"`
	} `yaml:"sink"`

	Notifier struct {
		Pubsub struct {
			ProjectID string `yaml:"projectId"`
			TopicID   string `yaml:"topicId"`
		} `yaml:"pubsub"`
	} `yaml:"notifier"`
}

// LoadConfig reads and validates the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Bridge.BaseURL == "" {
		return nil, fmt.Errorf("bridge.baseUrl is required")
	}
	if cfg.Bridge.TimeoutSeconds <= 0 {
		cfg.Bridge.TimeoutSeconds = 30
	}
	if cfg.Watermark.Backend == "" {
		cfg.Watermark.Backend = "file"
	}
	if cfg.Watermark.Backend == "file" && cfg.Watermark.File.Path == "" {
		cfg.Watermark.File.Path = "state/watermark.json"
	}
	if cfg.Sink.Backend == "" {
		cfg.Sink.Backend = "csv"
	}
	if cfg.Sink.Backend == "csv" && cfg.Sink.CSV.Path == "" {
		cfg.Sink.CSV.Path = "export/messages.csv"
	}
	return &cfg, nil
}

// BridgeTimeout returns the configured bridge timeout as a duration.
func (c *Config) BridgeTimeout() time.Duration {
	return time.Duration(c.Bridge.TimeoutSeconds) * time.Second
}
