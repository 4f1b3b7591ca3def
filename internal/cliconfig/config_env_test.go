package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"FLIGHTREC_OUTPUT":        "/env/out.bin",
				"FLIGHTREC_TICK_INTERVAL": "2ms",
				"FLIGHTREC_BUDGET_MAX":    "2048",
				"FLIGHTREC_TRIGGER_LEVEL": "1.5",
				"FLIGHTREC_REFERENCE":     "-0.5",
				"FLIGHTREC_CRC":           "true",
				"FLIGHTREC_WATCH":         "1",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Output:       "/env/out.bin",
				TickInterval: 2 * time.Millisecond,
				BudgetMax:    2048,
				TriggerLevel: 1.5,
				Reference:    -0.5,
				CRC:          true,
				Watch:        true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"FLIGHTREC_OUTPUT":    "/env/out.bin",
				"FLIGHTREC_LOG_LEVEL": "warn",
			},
			changed: map[string]bool{"output": true},
			initial: Config{Output: "/flag/out.bin"},
			expected: Config{
				Output:   "/flag/out.bin",
				LogLevel: "warn",
			},
		},
		{
			name:    "zero from env disables pdo",
			envVars: map[string]string{"FLIGHTREC_PDO_EVERY": "0"},
			changed: map[string]bool{},
			initial: Config{PDOEvery: 10},
			expected: Config{
				PDOEvery: 0,
			},
		},
		{
			name:    "invalid int",
			envVars: map[string]string{"FLIGHTREC_QUEUE_DEPTH": "many"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "invalid float",
			envVars: map[string]string{"FLIGHTREC_TRIGGER_LEVEL": "high"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "invalid duration",
			envVars: map[string]string{"FLIGHTREC_SLOW_INTERVAL": "later"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnvConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
