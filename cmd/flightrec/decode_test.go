package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/flightrec/pkg/link"
	"github.com/bft-labs/flightrec/pkg/record"
	"github.com/bft-labs/flightrec/pkg/txsched"
)

func encodeRecord(t *testing.T, typ record.Type, seq uint16, period uint32, payload []byte) []byte {
	t.Helper()
	h := record.NewHeader(typ, 3, len(payload), seq, record.Timestamp{PeriodCount: period, Subtick: 1}, record.FlagNone)
	b := make([]byte, record.HeaderSize+len(payload))
	require.NoError(t, record.Pack(b, h))
	copy(b[record.HeaderSize:], payload)
	return b
}

func TestDecodeRecords_Text(t *testing.T) {
	var data []byte
	data = append(data, 0xEE) // garbage before the first record
	data = append(data, encodeRecord(t, record.TypeCtrl, 1, 10, []byte{1, 2, 3, 4})...)
	data = append(data, encodeRecord(t, record.TypeMeta, 2, 11, []byte{0xAB})...)
	data = append(data, 0x01, 0x02)

	var out bytes.Buffer
	require.NoError(t, decodeRecords(&out, data, decodeOptions{payload: true}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "CTRL")
	assert.Contains(t, lines[0], "t=10.1")
	assert.Contains(t, lines[0], "01020304")
	assert.Contains(t, lines[1], "META")
	assert.Equal(t, "2 records, 1 bytes skipped, 2 truncated", lines[2])
}

func TestDecodeRecords_JSON(t *testing.T) {
	data := encodeRecord(t, record.TypePDO, 9, 42, []byte{5, 6})

	var out bytes.Buffer
	require.NoError(t, decodeRecords(&out, data, decodeOptions{json: true}))

	var d decodedRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &d))
	assert.Equal(t, "PDO", d.Type)
	assert.Equal(t, uint16(9), d.Seq)
	assert.Equal(t, uint32(42), d.PeriodCount)
	assert.Equal(t, uint16(2), d.Length)
	assert.Equal(t, "none", d.CRC)
	assert.Empty(t, d.Payload)
}

func TestDemuxLink(t *testing.T) {
	pdo := encodeRecord(t, record.TypePDO, 1, 5, []byte{9, 9})
	logRec := encodeRecord(t, record.TypeCtrl, 1, 5, []byte{1, 2, 3, 4})

	var stream bytes.Buffer
	frame := make([]byte, 64)
	for _, f := range []struct {
		class txsched.Class
		body  []byte
	}{
		{txsched.ClassLog, logRec},
		{txsched.ClassPDO, pdo},
		{txsched.ClassLog, logRec},
	} {
		n, err := link.EncodeFrame(frame, f.class, f.body)
		require.NoError(t, err)
		stream.Write(frame[:n])
	}

	data, err := demuxLink(&stream)
	require.NoError(t, err)
	assert.Equal(t, len(pdo)+2*len(logRec), len(data))

	s := record.NewScanner(data)
	var types []record.Type
	for s.Next() {
		types = append(types, s.Record().Header.Type)
	}
	assert.Equal(t, []record.Type{record.TypeCtrl, record.TypePDO, record.TypeCtrl}, types)
}

func TestDemuxLink_Truncated(t *testing.T) {
	frame := make([]byte, 16)
	n, err := link.EncodeFrame(frame, txsched.ClassLog, []byte{1, 2, 3, 4})
	require.NoError(t, err)

	_, err = demuxLink(bytes.NewReader(frame[:n-1]))
	assert.Error(t, err)
}
