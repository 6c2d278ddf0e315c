package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/constants"
	"github.com/elata-labs/eegpipe/internal/stage"
)

func init() {
	stage.Register("csv_sink", func() stage.Stage { return &CSVSink{} })
}

// CSVSinkParams configures the csv_sink worker.
type CSVSinkParams struct {
	RecordingsDir             string `json:"recordings_dir"`
	SessionID                 string `json:"session_id"`
	BoardName                 string `json:"board_name"`
	MaxRecordingLengthMinutes int    `json:"max_recording_length_minutes"`
}

const csvSinkSchema = `{
  "type": "object",
  "properties": {
    "recordings_dir": {"type": "string"},
    "session_id": {"type": "string"},
    "board_name": {"type": "string"},
    "max_recording_length_minutes": {"type": "integer", "exclusiveMinimum": 0}
  },
  "required": ["recordings_dir"]
}`

// CSVSink is a terminal worker stage writing one row per sample,
// channel-padded to constants.MaxCSVChannels, rotating to a new file when
// max_recording_length_minutes elapses. Flush cadence is both on a timer
// and on rotation.
type CSVSink struct {
	name   string
	params CSVSinkParams

	file       *os.File
	rowsSince  int
	openedAt   time.Time
	lastFlush  time.Time
}

func (s *CSVSink) Name() string     { return s.name }
func (s *CSVSink) Mode() stage.Mode { return stage.ModeWorker }

func (s *CSVSink) Init(cfg stage.Config) error {
	s.name = cfg.Name
	var p CSVSinkParams
	if err := remarshalParams(cfg.Params, &p); err != nil {
		return &eegpipe.Error{Op: "CSVSink.Init", Code: eegpipe.ErrCodeBadConfig, StageName: cfg.Name, Inner: err}
	}
	if p.RecordingsDir == "" {
		return &eegpipe.Error{Op: "CSVSink.Init", Code: eegpipe.ErrCodeBadConfig, StageName: cfg.Name}
	}
	if p.MaxRecordingLengthMinutes <= 0 {
		p.MaxRecordingLengthMinutes = constants.DefaultMaxRecordingLengthMinutes
	}
	if p.BoardName == "" {
		p.BoardName = "unknown"
	}
	s.params = p
	return s.rotate()
}

func (s *CSVSink) ParamSchema() json.RawMessage { return json.RawMessage(csvSinkSchema) }

func (s *CSVSink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// rotate closes the current file (if any) and opens a fresh one named
// <recordings_dir>/[session<id>_]<YYYY-MM-DD_HH-MM>_board<name>.csv
func (s *CSVSink) rotate() error {
	if s.file != nil {
		_ = s.file.Close()
	}
	if err := os.MkdirAll(s.params.RecordingsDir, 0o755); err != nil {
		return &eegpipe.Error{Op: "CSVSink.rotate", Code: eegpipe.ErrCodeBadConfig, StageName: s.name, Inner: err}
	}

	now := time.Now()
	prefix := ""
	if s.params.SessionID != "" {
		prefix = "session" + s.params.SessionID + "_"
	}
	name := fmt.Sprintf("%s%s_board%s.csv", prefix, now.Format("2006-01-02_15-04"), s.params.BoardName)
	path := filepath.Join(s.params.RecordingsDir, name)

	f, err := os.Create(path)
	if err != nil {
		return &eegpipe.Error{Op: "CSVSink.rotate", Code: eegpipe.ErrCodeBadConfig, StageName: s.name, Inner: err}
	}
	if _, err := f.WriteString(s.headerRow()); err != nil {
		_ = f.Close()
		return &eegpipe.Error{Op: "CSVSink.rotate", Code: eegpipe.ErrCodeBadConfig, StageName: s.name, Inner: err}
	}

	s.file = f
	s.rowsSince = 0
	s.openedAt = now
	s.lastFlush = now
	return nil
}

func (s *CSVSink) headerRow() string {
	row := "timestamp"
	for i := 0; i < constants.MaxCSVChannels; i++ {
		row += ",ch" + strconv.Itoa(i) + "_voltage"
	}
	return row + "\n"
}

func (s *CSVSink) Process(ctx context.Context, pool *eegpipe.MemoryPool, in eegpipe.Packet) (eegpipe.Packet, error) {
	defer in.Release()

	voltage, ok := in.(*eegpipe.VoltagePacket)
	if !ok {
		return nil, &eegpipe.Error{Op: "CSVSink.Process", Code: eegpipe.ErrCodeStageProcessFailed, StageName: s.name}
	}
	header := voltage.Header()
	samples := voltage.Samples()

	if time.Since(s.openedAt) >= time.Duration(s.params.MaxRecordingLengthMinutes)*time.Minute {
		if err := s.rotate(); err != nil {
			return nil, err
		}
	}

	for t := 0; t < header.BatchSize; t++ {
		ts := header.TSNanos + int64(t)*int64(time.Second/time.Duration(header.Meta.SampleRate))
		row := strconv.FormatInt(ts, 10)
		for ch := 0; ch < constants.MaxCSVChannels; ch++ {
			if ch < header.NumChannels {
				row += "," + strconv.FormatFloat(float64(samples[ch*header.BatchSize+t]), 'f', 6, 32)
			} else {
				row += ",0.0"
			}
		}
		if _, err := s.file.WriteString(row + "\n"); err != nil {
			return nil, &eegpipe.Error{Op: "CSVSink.Process", Code: eegpipe.ErrCodeStageProcessFailed, StageName: s.name, Inner: err}
		}
		s.rowsSince++
	}

	if time.Since(s.lastFlush) >= constants.DefaultCSVFlushInterval {
		if err := s.file.Sync(); err != nil {
			return nil, &eegpipe.Error{Op: "CSVSink.Process", Code: eegpipe.ErrCodeStageProcessFailed, StageName: s.name, Inner: err}
		}
		s.lastFlush = time.Now()
	}

	return nil, nil
}
