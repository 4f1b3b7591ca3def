package cliconfig

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/flightrec/pkg/bytestore"
	"github.com/bft-labs/flightrec/pkg/flightrec"
	"github.com/bft-labs/flightrec/pkg/link"
	"github.com/bft-labs/flightrec/pkg/record"
)

// DefaultDirName is the directory under the user's home holding the config
// file and saved state.
const DefaultDirName = ".flightrec"

// Config holds CLI configuration for flightrec.
type Config struct {
	CaptureBytes int
	Pretrigger   int
	Posttrigger  int
	QueueDepth   int

	TickInterval time.Duration
	SlowInterval time.Duration

	BudgetStep    int
	BudgetMax     int
	MaxFrameBytes int
	PDOEvery      int
	FramesPerSlot int

	SourceID   int
	RecordType string
	Fields     string
	CRC        bool

	TriggerAfter int
	TriggerLevel float64
	Reference    float64

	Output       string
	SerialDevice string
	SerialBaud   int
	MQTTURL      string
	MQTTTopic    string

	StateDir string

	StorePath             string
	StoreSize             int
	StoreChunk            int
	StoreRetries          int
	StoreDegradeThreshold int
	StoreRetryDelay       time.Duration

	Once     bool
	Watch    bool
	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		CaptureBytes:          flightrec.DefaultCaptureBytes,
		Pretrigger:            flightrec.DefaultPretrigger,
		Posttrigger:           flightrec.DefaultPosttrigger,
		QueueDepth:            flightrec.DefaultQueueDepth,
		TickInterval:          flightrec.DefaultTickInterval,
		SlowInterval:          flightrec.DefaultSlowInterval,
		BudgetStep:            flightrec.DefaultBudgetStep,
		BudgetMax:             flightrec.DefaultBudgetMax,
		MaxFrameBytes:         flightrec.DefaultMaxFrameBytes,
		PDOEvery:              flightrec.DefaultPDOEvery,
		FramesPerSlot:         flightrec.DefaultFramesPerSlot,
		SourceID:              1,
		RecordType:            record.TypeCtrl.String(),
		SerialBaud:            link.DefaultSerialConfig("").Baud,
		MQTTTopic:             "flightrec",
		StoreSize:             8 << 20, // 8MB
		StoreChunk:            256,
		StoreRetries:          3,
		StoreDegradeThreshold: 3,
		StoreRetryDelay:       5 * time.Millisecond,
		StateDir:              "", // Derived from the home directory during Validate
		LogLevel:              "info",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("state-dir is required (no home directory: %v)", err)
		}
		c.StateDir = filepath.Join(h, DefaultDirName)
	}

	if _, err := record.ParseType(strings.ToUpper(c.RecordType)); err != nil {
		return fmt.Errorf("record-type: %w", err)
	}
	if _, err := flightrec.SampleFields(c.FieldList()); err != nil {
		return fmt.Errorf("fields: %w", err)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}

	if c.SourceID < 0 || c.SourceID > math.MaxUint16 {
		return fmt.Errorf("source-id must be in 0..%d", math.MaxUint16)
	}
	if c.BudgetStep < 0 || c.BudgetMax < 0 || c.TriggerAfter < 0 {
		return fmt.Errorf("budget and trigger-after must not be negative")
	}
	if c.SerialDevice != "" && c.SerialBaud <= 0 {
		return fmt.Errorf("baud must be positive")
	}
	if c.MQTTURL != "" && c.MQTTTopic == "" {
		return fmt.Errorf("mqtt-topic is required with mqtt-url")
	}
	if c.StorePath != "" {
		if c.StoreSize <= 0 || c.StoreChunk <= 0 || c.StoreRetries <= 0 || c.StoreDegradeThreshold <= 0 {
			return fmt.Errorf("store size, chunk, retries and degrade threshold must be positive")
		}
	}

	rc := c.RuntimeConfig()
	rc.SetDefaults()
	return rc.Validate()
}

// FieldList splits the comma separated field names.
func (c Config) FieldList() []string {
	var out []string
	for _, f := range strings.Split(c.Fields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// RuntimeConfig converts to the runtime configuration.
func (c Config) RuntimeConfig() flightrec.Config {
	typ, _ := record.ParseType(strings.ToUpper(c.RecordType))
	return flightrec.Config{
		CaptureBytes:  c.CaptureBytes,
		Pretrigger:    c.Pretrigger,
		Posttrigger:   c.Posttrigger,
		QueueDepth:    c.QueueDepth,
		TickInterval:  c.TickInterval,
		SlowInterval:  c.SlowInterval,
		BudgetStep:    uint32(c.BudgetStep),
		BudgetMax:     uint32(c.BudgetMax),
		MaxFrameBytes: c.MaxFrameBytes,
		PDOEvery:      c.PDOEvery,
		FramesPerSlot: c.FramesPerSlot,
		SourceID:      uint16(c.SourceID),
		RecordType:    typ,
		Fields:        c.FieldList(),
		CRC:           c.CRC,
		TriggerAfter:  uint32(c.TriggerAfter),
		TriggerLevel:  c.TriggerLevel,
		Reference:     float32(c.Reference),
		Once:          c.Once,
	}
}

// StoreConfig converts to the archive store configuration.
func (c Config) StoreConfig() bytestore.Config {
	return bytestore.Config{
		MemorySize:         int64(c.StoreSize),
		MaxChunk:           c.StoreChunk,
		MaxRetriesPerChunk: c.StoreRetries,
		DegradeThreshold:   c.StoreDegradeThreshold,
		RetryDelay:         c.StoreRetryDelay,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int value from a pointer, zero included.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloatPtr sets a float64 value from a pointer, so zero and negative
// values can be configured.
func (s *configSetter) setFloatPtr(flag string, value *float64, dst *float64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
