package flightrec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/flightrec/pkg/packer"
	"github.com/bft-labs/flightrec/pkg/record"
)

func TestConfig_SetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultCaptureBytes, cfg.CaptureBytes)
	assert.Equal(t, DefaultPretrigger, cfg.Pretrigger)
	assert.Equal(t, DefaultPosttrigger, cfg.Posttrigger)
	assert.Equal(t, record.TypeCtrl, cfg.RecordType)
	assert.Equal(t, uint32(DefaultBudgetStep), cfg.BudgetStep)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"window exceeds ring", func(c *Config) { c.Pretrigger = c.CaptureBytes }},
		{"negative pretrigger", func(c *Config) { c.Pretrigger = -1 }},
		{"budget max below step", func(c *Config) { c.BudgetMax = c.BudgetStep - 1 }},
		{"frame too large", func(c *Config) { c.MaxFrameBytes = 1 << 20 }},
		{"frame cannot hold pdo", func(c *Config) { c.PDOEvery = 1; c.MaxFrameBytes = 8 }},
		{"negative level", func(c *Config) { c.TriggerLevel = -1 }},
		{"unknown field", func(c *Config) { c.Fields = []string{"torque"} }},
		{"zero frames per slot", func(c *Config) { c.FramesPerSlot = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.SetDefaults()
			tt.modify(&cfg)
			err := cfg.Validate()
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{CaptureBytes: 16, Pretrigger: 8, Posttrigger: 16})
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestSampleLayout(t *testing.T) {
	assert.Equal(t, 24, SampleSize)

	s := Sample{PeriodCount: 77, Subtick: 3, DomainID: 2, Measured: 1.25}
	img := packer.Image(&s)
	ts := stampSample(img)
	assert.Equal(t, record.Timestamp{PeriodCount: 77, Subtick: 3, DomainID: 2}, ts)
	assert.Equal(t, float32(1.25), measuredOf(img))
}

func TestSampleFields(t *testing.T) {
	fields, err := SampleFields([]string{"measured", "duty"})
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, uint16(4), fields[0].ID)
	assert.Equal(t, 8, packer.Size(fields))

	_, err = SampleFields([]string{"nope"})
	assert.Error(t, err)
}

func TestSample_StepConverges(t *testing.T) {
	var s Sample
	for i := 0; i < 500; i++ {
		s.step(Setpoint{Current: 4})
	}
	assert.Equal(t, uint32(500), s.PeriodCount)
	assert.InDelta(t, 4, float64(s.Measured), 0.01)
	assert.InDelta(t, 4*plantResistance/busVoltage, float64(s.Duty), 0.01)
}

func TestIsVersionCompatible(t *testing.T) {
	tests := []struct {
		version, min string
		want         bool
	}{
		{"1.0.0", "1.0.0", true},
		{"1.2.0", "1.1.9", true},
		{"2.0.0", "1.9.9", true},
		{"1.0.0", "1.0.1", false},
		{"0.9.0", "1.0.0", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isVersionCompatible(tt.version, tt.min), "%s >= %s", tt.version, tt.min)
	}
	assert.NoError(t, validateModuleVersions())
	assert.Equal(t, Version, ModuleVersions()["flightrec"])
}
