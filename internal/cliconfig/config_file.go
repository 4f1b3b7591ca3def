package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
// The tuning keys (budget_step, budget_max, trigger_after, trigger_level,
// reference) are the ones the config watcher reloads at runtime, so the same
// file serves both.
type FileConfig struct {
	CaptureBytes  int    `toml:"capture_bytes"`
	Pretrigger    int    `toml:"pretrigger"`
	Posttrigger   int    `toml:"posttrigger"`
	QueueDepth    int    `toml:"queue_depth"`
	TickInterval  string `toml:"tick_interval"`
	SlowInterval  string `toml:"slow_interval"`
	BudgetStep    int    `toml:"budget_step"`
	BudgetMax     int    `toml:"budget_max"`
	MaxFrameBytes int    `toml:"max_frame_bytes"`
	PDOEvery      *int   `toml:"pdo_every"`
	FramesPerSlot int    `toml:"frames_per_slot"`

	SourceID   *int   `toml:"source_id"`
	RecordType string `toml:"record_type"`
	Fields     string `toml:"fields"`
	CRC        *bool  `toml:"crc"`

	TriggerAfter *int     `toml:"trigger_after"`
	TriggerLevel *float64 `toml:"trigger_level"`
	Reference    *float64 `toml:"reference"`

	Output       string `toml:"output"`
	SerialDevice string `toml:"serial_device"`
	SerialBaud   int    `toml:"serial_baud"`
	MQTTURL      string `toml:"mqtt_url"`
	MQTTTopic    string `toml:"mqtt_topic"`

	StateDir string `toml:"state_dir"`

	StorePath             string `toml:"store_path"`
	StoreSize             int    `toml:"store_size"`
	StoreChunk            int    `toml:"store_chunk"`
	StoreRetries          int    `toml:"store_retries"`
	StoreDegradeThreshold int    `toml:"store_degrade_threshold"`
	StoreRetryDelay       string `toml:"store_retry_delay"`

	Once     *bool  `toml:"once"`
	Watch    *bool  `toml:"watch"`
	LogLevel string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.flightrec/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, DefaultDirName, "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setInt("capture-bytes", fc.CaptureBytes, &cfg.CaptureBytes)
	s.setInt("pretrigger", fc.Pretrigger, &cfg.Pretrigger)
	s.setInt("posttrigger", fc.Posttrigger, &cfg.Posttrigger)
	s.setInt("queue-depth", fc.QueueDepth, &cfg.QueueDepth)
	s.setInt("budget-step", fc.BudgetStep, &cfg.BudgetStep)
	s.setInt("budget-max", fc.BudgetMax, &cfg.BudgetMax)
	s.setInt("max-frame", fc.MaxFrameBytes, &cfg.MaxFrameBytes)
	s.setIntPtr("pdo-every", fc.PDOEvery, &cfg.PDOEvery)
	s.setInt("frames-per-slot", fc.FramesPerSlot, &cfg.FramesPerSlot)
	s.setIntPtr("source-id", fc.SourceID, &cfg.SourceID)
	s.setIntPtr("trigger-after", fc.TriggerAfter, &cfg.TriggerAfter)
	s.setInt("baud", fc.SerialBaud, &cfg.SerialBaud)
	s.setInt("store-size", fc.StoreSize, &cfg.StoreSize)
	s.setInt("store-chunk", fc.StoreChunk, &cfg.StoreChunk)
	s.setInt("store-retries", fc.StoreRetries, &cfg.StoreRetries)
	s.setInt("store-degrade-threshold", fc.StoreDegradeThreshold, &cfg.StoreDegradeThreshold)

	if err := s.setDuration("tick", fc.TickInterval, &cfg.TickInterval); err != nil {
		return err
	}
	if err := s.setDuration("slow", fc.SlowInterval, &cfg.SlowInterval); err != nil {
		return err
	}
	if err := s.setDuration("store-retry-delay", fc.StoreRetryDelay, &cfg.StoreRetryDelay); err != nil {
		return err
	}

	s.setFloatPtr("trigger-level", fc.TriggerLevel, &cfg.TriggerLevel)
	s.setFloatPtr("reference", fc.Reference, &cfg.Reference)

	s.setString("record-type", fc.RecordType, &cfg.RecordType)
	s.setString("fields", fc.Fields, &cfg.Fields)
	s.setString("output", fc.Output, &cfg.Output)
	s.setString("serial", fc.SerialDevice, &cfg.SerialDevice)
	s.setString("mqtt-url", fc.MQTTURL, &cfg.MQTTURL)
	s.setString("mqtt-topic", fc.MQTTTopic, &cfg.MQTTTopic)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("store", fc.StorePath, &cfg.StorePath)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	s.setBool("crc", fc.CRC, &cfg.CRC)
	s.setBool("once", fc.Once, &cfg.Once)
	s.setBool("watch", fc.Watch, &cfg.Watch)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
