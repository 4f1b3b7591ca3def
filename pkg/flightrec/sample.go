package flightrec

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/bft-labs/flightrec/pkg/packer"
	"github.com/bft-labs/flightrec/pkg/record"
)

// Sample is the per-period control snapshot handed from the tick goroutine
// to the recorder. Its in-memory image is what gets queued and packed.
type Sample struct {
	PeriodCount uint32
	Subtick     uint16
	DomainID    uint16
	Reference   float32
	Measured    float32
	Voltage     float32
	Duty        float32
}

// SampleSize is the size of a Sample image in bytes.
const SampleSize = int(unsafe.Sizeof(Sample{}))

// Setpoint is what the slow side publishes to the tick goroutine.
type Setpoint struct {
	// Current is the reference current in amperes.
	Current float32
}

// Plant model used to synthesize samples.
const (
	plantAlpha      = 0.05
	plantResistance = 0.5
	plantGain       = 4.0
	busVoltage      = 48.0
)

var sampleFields = map[string]packer.Field{
	"period":    {ID: 1, Offset: unsafe.Offsetof(Sample{}.PeriodCount), Size: 4},
	"subtick":   {ID: 2, Offset: unsafe.Offsetof(Sample{}.Subtick), Size: 2},
	"reference": {ID: 3, Offset: unsafe.Offsetof(Sample{}.Reference), Size: 4},
	"measured":  {ID: 4, Offset: unsafe.Offsetof(Sample{}.Measured), Size: 4},
	"voltage":   {ID: 5, Offset: unsafe.Offsetof(Sample{}.Voltage), Size: 4},
	"duty":      {ID: 6, Offset: unsafe.Offsetof(Sample{}.Duty), Size: 4},
}

// pdoFields is the payload of the periodic PDO frame.
var pdoFields = []packer.Field{sampleFields["reference"], sampleFields["measured"]}

// pdoFrameSize is header plus reference and measured current.
var pdoFrameSize = record.HeaderSize + packer.Size(pdoFields)

// SampleFields resolves field names to packer descriptors, in order.
func SampleFields(names []string) ([]packer.Field, error) {
	fields := make([]packer.Field, 0, len(names))
	for _, name := range names {
		f, ok := sampleFields[name]
		if !ok {
			return nil, fmt.Errorf("unknown sample field %q", name)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// step advances the plant by one period toward the setpoint.
func (s *Sample) step(sp Setpoint) {
	s.PeriodCount++
	s.Subtick = 0
	s.Reference = sp.Current
	errA := s.Reference - s.Measured
	s.Measured += errA * plantAlpha
	s.Voltage = s.Measured*plantResistance + errA*plantGain
	s.Duty = clamp(s.Voltage/busVoltage, -1, 1)
}

func clamp(v, lo, hi float32) float32 {
	return float32(math.Max(float64(lo), math.Min(float64(hi), float64(v))))
}

// stampSample reads the timestamp out of a Sample image.
func stampSample(b []byte) record.Timestamp {
	return record.Timestamp{
		PeriodCount: packer.HostOrder.Uint32(b[unsafe.Offsetof(Sample{}.PeriodCount):]),
		Subtick:     packer.HostOrder.Uint16(b[unsafe.Offsetof(Sample{}.Subtick):]),
		DomainID:    packer.HostOrder.Uint16(b[unsafe.Offsetof(Sample{}.DomainID):]),
	}
}

// measuredOf reads the measured current out of a Sample image.
func measuredOf(b []byte) float32 {
	return math.Float32frombits(packer.HostOrder.Uint32(b[unsafe.Offsetof(Sample{}.Measured):]))
}
