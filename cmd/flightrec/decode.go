package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bft-labs/flightrec/pkg/link"
	"github.com/bft-labs/flightrec/pkg/record"
	"github.com/bft-labs/flightrec/pkg/txsched"
)

type decodeOptions struct {
	link    bool
	payload bool
	json    bool
}

func newDecodeCmd() *cobra.Command {
	var opts decodeOptions
	cmd := &cobra.Command{
		Use:   "decode FILE",
		Short: "Print the records in a capture file",
		Long: "Print the records in a capture file written by --output, an archive image, " +
			"or (with --link) a raw serial link dump.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			var data []byte
			if opts.link {
				data, err = demuxLink(bufio.NewReader(f))
			} else {
				data, err = io.ReadAll(f)
			}
			if err != nil {
				return err
			}
			return decodeRecords(cmd.OutOrStdout(), data, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.link, "link", false, "input carries link frame headers")
	cmd.Flags().BoolVar(&opts.payload, "payload", false, "print payloads in hex")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print one JSON object per record")
	return cmd
}

// demuxLink strips link frame headers and returns the concatenated frame
// bodies. PDO frames are single records, so the result scans as one stream.
func demuxLink(r io.Reader) ([]byte, error) {
	var out []byte
	buf := make([]byte, link.MaxFrame)
	for {
		class, n, err := link.ReadFrame(r, buf)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("read link frame: %w", err)
		}
		switch class {
		case txsched.ClassPDO, txsched.ClassLog:
			out = append(out, buf[:n]...)
		}
	}
}

type decodedRecord struct {
	Offset      int    `json:"offset"`
	Type        string `json:"type"`
	SourceID    uint16 `json:"source_id"`
	Seq         uint16 `json:"seq"`
	PeriodCount uint32 `json:"period"`
	Subtick     uint16 `json:"subtick"`
	Length      uint16 `json:"len"`
	CRC         string `json:"crc"`
	Payload     string `json:"payload,omitempty"`
}

func decodeRecords(w io.Writer, data []byte, opts decodeOptions) error {
	enc := json.NewEncoder(w)
	s := record.NewScanner(data)
	count := 0
	for s.Next() {
		rec := s.Record()
		d := decodedRecord{
			Offset:      rec.Offset,
			Type:        rec.Header.Type.String(),
			SourceID:    rec.Header.SourceID,
			Seq:         rec.Header.Seq,
			PeriodCount: rec.Header.PeriodCount,
			Subtick:     rec.Header.Subtick,
			Length:      rec.Header.PayloadLen,
			CRC:         rec.CRC.String(),
		}
		if opts.payload {
			d.Payload = hex.EncodeToString(rec.Body())
		}
		count++

		if opts.json {
			if err := enc.Encode(d); err != nil {
				return err
			}
			continue
		}
		line := fmt.Sprintf("%8d %-9s src=%d seq=%-5d t=%d.%d len=%d crc=%s",
			d.Offset, d.Type, d.SourceID, d.Seq, d.PeriodCount, d.Subtick, d.Length, d.CRC)
		if opts.payload {
			line += " " + d.Payload
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if !opts.json {
		_, err := fmt.Fprintf(w, "%d records, %d bytes skipped, %d truncated\n", count, s.Skipped(), s.Truncated())
		return err
	}
	return nil
}
