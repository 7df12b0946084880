package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/OCAP2/simtools/pkg/core"
)

var (
	// ErrEmpty is returned when a trace holds no frames
	ErrEmpty = errors.New("trace contains no frames")
	// ErrMalformed is returned when a trace line cannot be parsed
	ErrMalformed = errors.New("malformed trace line")
)

// rawFrame keeps pointers so missing keys can be told apart from zero values.
type rawFrame struct {
	TimeSec   *int64         `json:"time_sec"`
	Positions *[]rawPosition `json:"positions"`
}

// rawPosition accepts "object_id", which the simulators write instead of "agent_id".
type rawPosition struct {
	AgentID  string  `json:"agent_id"`
	ObjectID string  `json:"object_id"`
	TeamID   string  `json:"team_id"`
	Role     string  `json:"role"`
	LatDeg   float64 `json:"lat_deg"`
	LonDeg   float64 `json:"lon_deg"`
	AltM     float64 `json:"alt_m"`
}

func (p rawPosition) record() core.PositionRecord {
	id := p.AgentID
	if id == "" {
		id = p.ObjectID
	}
	return core.PositionRecord{
		AgentID: id,
		TeamID:  core.TeamID(p.TeamID),
		Role:    core.Role(p.Role),
		LatDeg:  p.LatDeg,
		LonDeg:  p.LonDeg,
		AltM:    p.AltM,
	}
}

// Decoder reads newline-delimited frames
type Decoder struct {
	r    *bufio.Reader
	line int
}

// NewDecoder creates a decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Line returns the number of the last line read
func (d *Decoder) Line() int {
	return d.line
}

// Next returns the next frame, skipping blank lines. It returns io.EOF when the
// stream is exhausted and an error wrapping ErrMalformed for a bad line.
func (d *Decoder) Next() (core.Frame, error) {
	for {
		line, readErr := d.r.ReadBytes('\n')
		if len(line) == 0 && readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return core.Frame{}, io.EOF
			}
			return core.Frame{}, fmt.Errorf("failed to read trace: %w", readErr)
		}
		d.line++

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if readErr != nil {
				return core.Frame{}, io.EOF
			}
			continue
		}

		return parseLine(line, d.line)
	}
}

func parseLine(line []byte, n int) (core.Frame, error) {
	var raw rawFrame
	if err := json.Unmarshal(line, &raw); err != nil {
		return core.Frame{}, fmt.Errorf("%w: line %d: %v", ErrMalformed, n, err)
	}
	if raw.TimeSec == nil {
		return core.Frame{}, fmt.Errorf("%w: line %d: missing time_sec", ErrMalformed, n)
	}
	if raw.Positions == nil {
		return core.Frame{}, fmt.Errorf("%w: line %d: missing positions", ErrMalformed, n)
	}

	frame := core.Frame{
		TimeSec:   *raw.TimeSec,
		Positions: make([]core.PositionRecord, len(*raw.Positions)),
	}
	for i, p := range *raw.Positions {
		frame.Positions[i] = p.record()
	}
	return frame, nil
}

// Encoder writes frames as newline-delimited JSON
type Encoder struct {
	enc *json.Encoder
}

// NewEncoder creates an encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode writes one frame as a single line
func (e *Encoder) Encode(f core.Frame) error {
	if f.Positions == nil {
		f.Positions = []core.PositionRecord{}
	}
	return e.enc.Encode(f)
}
