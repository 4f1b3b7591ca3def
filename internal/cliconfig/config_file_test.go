package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	zero := 0
	level := 2.5
	negRef := -1.0

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				CaptureBytes: 4096,
				TickInterval: "2ms",
				BudgetStep:   32,
				TriggerLevel: &level,
				SerialDevice: "/dev/ttyACM0",
				CRC:          &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				CaptureBytes: 4096,
				TickInterval: 2 * time.Millisecond,
				BudgetStep:   32,
				TriggerLevel: 2.5,
				SerialDevice: "/dev/ttyACM0",
				CRC:          true,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Output:   "/file/out.bin",
				LogLevel: "debug",
			},
			changed: map[string]bool{"output": true},
			initial: Config{Output: "/flag/out.bin"},
			expected: Config{
				Output:   "/flag/out.bin",
				LogLevel: "debug",
			},
		},
		{
			name: "pointer values set zero and negative",
			fileConfig: FileConfig{
				PDOEvery:  &zero,
				Reference: &negRef,
			},
			changed: map[string]bool{},
			initial: Config{PDOEvery: 10, Reference: 1},
			expected: Config{
				PDOEvery:  0,
				Reference: -1,
			},
		},
		{
			name: "ignores empty and zero values",
			fileConfig: FileConfig{
				CaptureBytes: 0,
				Output:       "",
			},
			changed:  map[string]bool{},
			initial:  Config{CaptureBytes: 1024, Output: "keep"},
			expected: Config{CaptureBytes: 1024, Output: "keep"},
		},
		{
			name:       "invalid duration",
			fileConfig: FileConfig{SlowInterval: "soon"},
			changed:    map[string]bool{},
			initial:    Config{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFileConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
capture_bytes = 8192
tick_interval = "500us"
record_type = "ADC_RAW"
fields = "period,measured"
budget_step = 16
trigger_after = 0
trigger_level = 3.5
mqtt_url = "tcp://broker:1883"
once = true
unknown_key = "ignored"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if fc.CaptureBytes != 8192 || fc.TickInterval != "500us" || fc.RecordType != "ADC_RAW" {
		t.Errorf("unexpected file config %+v", fc)
	}
	if fc.TriggerAfter == nil || *fc.TriggerAfter != 0 {
		t.Errorf("TriggerAfter = %v, want explicit 0", fc.TriggerAfter)
	}
	if fc.TriggerLevel == nil || *fc.TriggerLevel != 3.5 {
		t.Errorf("TriggerLevel = %v, want 3.5", fc.TriggerLevel)
	}
	if fc.Once == nil || !*fc.Once {
		t.Errorf("Once = %v, want true", fc.Once)
	}

	cfg := DefaultConfig()
	if err := ApplyFileConfig(&cfg, fc, map[string]bool{}); err != nil {
		t.Fatal(err)
	}
	if cfg.TickInterval != 500*time.Microsecond || cfg.MQTTURL != "tcp://broker:1883" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadFileConfig_Errors(t *testing.T) {
	if _, err := LoadFileConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("capture_bytes = [nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFileConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	p := DefaultConfigPath()
	if p == "" {
		t.Skip("no home directory")
	}
	if !strings.HasSuffix(p, filepath.Join(DefaultDirName, "config.toml")) {
		t.Errorf("DefaultConfigPath() = %v", p)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(path) {
		t.Error("FileExists() = false for existing file")
	}
	if FileExists(filepath.Join(dir, "absent")) {
		t.Error("FileExists() = true for missing file")
	}
}
