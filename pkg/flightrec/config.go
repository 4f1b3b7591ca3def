package flightrec

import (
	"fmt"
	"time"

	"github.com/bft-labs/flightrec/internal/domain"
	"github.com/bft-labs/flightrec/pkg/link"
	"github.com/bft-labs/flightrec/pkg/record"
)

// Default values for Config.
const (
	DefaultCaptureBytes  = 64 * 1024
	DefaultPretrigger    = 16 * 1024
	DefaultPosttrigger   = 32 * 1024
	DefaultQueueDepth    = 256
	DefaultTickInterval  = time.Millisecond
	DefaultSlowInterval  = 10 * time.Millisecond
	DefaultBudgetStep    = 64
	DefaultBudgetMax     = 1024
	DefaultMaxFrameBytes = 256
	DefaultPDOEvery      = 10
	DefaultPDODepth      = 16
	DefaultFramesPerSlot = 64
	DefaultArchiveChunk  = 512
)

// Config is the runtime configuration.
type Config struct {
	// CaptureBytes is the size of the capture ring.
	CaptureBytes int

	// Pretrigger and Posttrigger size the capture window.
	Pretrigger  int
	Posttrigger int

	// QueueDepth is the number of samples the tick goroutine can run ahead
	// of the recorder.
	QueueDepth int

	TickInterval time.Duration
	SlowInterval time.Duration

	// BudgetStep LOG bytes are granted per tick, up to BudgetMax.
	BudgetStep uint32
	BudgetMax  uint32

	// MaxFrameBytes bounds a single link frame.
	MaxFrameBytes int

	// PDOEvery sends a PDO frame every N ticks. 0 disables PDO frames.
	PDOEvery int
	PDODepth int

	// FramesPerSlot bounds the frames moved to the link per slow slot.
	FramesPerSlot int

	// Record layout.
	SourceID   uint16
	RecordType record.Type
	Fields     []string
	CRC        bool

	// TriggerAfter fires the trigger this many periods after arming.
	// TriggerLevel fires it when |measured current| reaches the level.
	// Zero disables either.
	TriggerAfter uint32
	TriggerLevel float64

	// Reference is the initial current setpoint.
	Reference float32

	// ArchiveChunk is the read size used when copying a window into the
	// archive store.
	ArchiveChunk int

	// Once stops capturing after the first drained window.
	Once bool
}

// SetDefaults fills zero fields with defaults.
func (c *Config) SetDefaults() {
	if c.CaptureBytes == 0 {
		c.CaptureBytes = DefaultCaptureBytes
	}
	if c.Pretrigger == 0 && c.Posttrigger == 0 {
		c.Pretrigger = DefaultPretrigger
		c.Posttrigger = DefaultPosttrigger
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	if c.TickInterval == 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.SlowInterval == 0 {
		c.SlowInterval = DefaultSlowInterval
	}
	if c.BudgetStep == 0 {
		c.BudgetStep = DefaultBudgetStep
	}
	if c.BudgetMax == 0 {
		c.BudgetMax = DefaultBudgetMax
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if c.PDODepth == 0 {
		c.PDODepth = DefaultPDODepth
	}
	if c.FramesPerSlot == 0 {
		c.FramesPerSlot = DefaultFramesPerSlot
	}
	if c.RecordType == record.TypeNone {
		c.RecordType = record.TypeCtrl
	}
	if c.ArchiveChunk == 0 {
		c.ArchiveChunk = DefaultArchiveChunk
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch {
	case c.CaptureBytes <= 0:
		return invalid("capture_bytes must be positive")
	case c.Pretrigger < 0 || c.Posttrigger < 0:
		return invalid("pretrigger and posttrigger must not be negative")
	case c.Pretrigger+c.Posttrigger > c.CaptureBytes:
		return invalid("pretrigger %d + posttrigger %d exceed capture_bytes %d",
			c.Pretrigger, c.Posttrigger, c.CaptureBytes)
	case c.QueueDepth <= 0:
		return invalid("queue_depth must be positive")
	case c.TickInterval <= 0 || c.SlowInterval <= 0:
		return invalid("tick and slow intervals must be positive")
	case c.BudgetMax < c.BudgetStep:
		return invalid("budget_max %d below budget_step %d", c.BudgetMax, c.BudgetStep)
	case c.MaxFrameBytes <= 0 || c.MaxFrameBytes > link.MaxFrame:
		return invalid("max_frame_bytes must be in 1..%d", link.MaxFrame)
	case c.PDOEvery < 0:
		return invalid("pdo_every must not be negative")
	case c.PDOEvery > 0 && c.MaxFrameBytes < pdoFrameSize:
		return invalid("max_frame_bytes %d cannot hold a %d-byte PDO frame", c.MaxFrameBytes, pdoFrameSize)
	case c.PDODepth <= 0:
		return invalid("pdo_depth must be positive")
	case c.FramesPerSlot <= 0:
		return invalid("frames_per_slot must be positive")
	case c.TriggerLevel < 0:
		return invalid("trigger_level must not be negative")
	case c.ArchiveChunk <= 0:
		return invalid("archive_chunk must be positive")
	}
	if _, err := SampleFields(c.Fields); err != nil {
		return invalid("%v", err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
