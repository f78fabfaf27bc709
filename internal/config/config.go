// Package config loads and validates the telemetry translator's
// process configuration, validating against a JSON Schema before
// decoding into package-level Keys.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/indoorassets/telemetry-translator/pkg/log"
)

// NatsConfig configures the inbound BDCL/SCL subscriptions.
// HistorySubject is accepted and decoded but not read; the history
// sink publishes to History.Subject.
type NatsConfig struct {
	Address        string `json:"address"`
	BDCLSubject    string `json:"bdclSubject"`
	SCLSubject     string `json:"sclSubject"`
	HistorySubject string `json:"historySubject"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	CredsFilePath  string `json:"credsFilePath"`
}

// DCMConfig configures the outbound websocket sink pool.
type DCMConfig struct {
	BaseURL            string `json:"baseUrl"`
	ReconnectInterval  string `json:"reconnectInterval"`
	OutboundQueueLimit int    `json:"outboundQueueLimit"`
}

// BLERTLSConfig configures where the BLE-RTLS zone config is read
// from and how often it is re-read (§6, "external collaborator").
type BLERTLSConfig struct {
	ConfigPath     string `json:"configPath"`
	RereadInterval string `json:"rereadInterval"`
}

// HistoryConfig configures the long-term history sink binding (§9
// open question, resolved to NATS + InfluxDB line protocol).
type HistoryConfig struct {
	Subject  string `json:"subject"`
	Database string `json:"database"`
}

// Config is the full process configuration.
type Config struct {
	Nats              NatsConfig    `json:"nats"`
	DCM               DCMConfig     `json:"dcm"`
	BLERTLS           BLERTLSConfig `json:"bleRtls"`
	History           HistoryConfig `json:"history"`
	MetricsListenAddr string        `json:"metricsListenAddr"`
	LogLevel          string        `json:"logLevel"`
}

// Keys holds the process-wide configuration once Init has run.
var Keys = Config{
	DCM: DCMConfig{
		ReconnectInterval:  "1s",
		OutboundQueueLimit: 10000,
	},
	BLERTLS: BLERTLSConfig{
		ConfigPath:     "/data/shared_files/ble_rtls.conf",
		RereadInterval: "5s",
	},
	MetricsListenAddr: ":9090",
	LogLevel:          "info",
}

// Init reads, validates and decodes the config file at path into
// Keys.
func Init(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("config: reading %s: %v", path, err)
	}

	Validate(Schema, raw)

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		log.Fatalf("config: decoding %s: %v", path, err)
	}
}

// ReconnectDuration parses DCM.ReconnectInterval, defaulting to 1s on
// a bad or empty value (§6: "reconnect task ... with a 1 s retry
// interval").
func (c DCMConfig) ReconnectDuration() time.Duration {
	d, err := time.ParseDuration(c.ReconnectInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// RereadDuration parses BLERTLS.RereadInterval, defaulting to 5s.
func (c BLERTLSConfig) RereadDuration() time.Duration {
	d, err := time.ParseDuration(c.RereadInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}
