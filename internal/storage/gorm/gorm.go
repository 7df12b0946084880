// Package gormstorage archives scenarios and traces in a SQL database through GORM.
package gormstorage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"github.com/OCAP2/simtools/internal/queue"
	"github.com/OCAP2/simtools/internal/scenario"
	"github.com/OCAP2/simtools/internal/trace"
	"github.com/OCAP2/simtools/pkg/core"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultBatchSize = 500

// ScenarioRecord is one archived scenario document
type ScenarioRecord struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Name      string         `gorm:"size:255;uniqueIndex" json:"name"`
	Teams     int            `json:"teams"`
	Agents    int            `json:"agents"`
	Document  datatypes.JSON `json:"document"`
}

// TraceRecord is the header of one archived trace
type TraceRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Name      string    `gorm:"size:255;uniqueIndex" json:"name"`
	Frames    int       `json:"frames"`
	MinTime   int64     `json:"minTime"`
	MaxTime   int64     `json:"maxTime"`
}

// TraceFrameRecord holds the positions of one frame of an archived trace
type TraceFrameRecord struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	TraceID   uint           `gorm:"index:idx_trace_time,priority:1" json:"traceId"`
	TimeSec   int64          `gorm:"index:idx_trace_time,priority:2" json:"timeSec"`
	Positions datatypes.JSON `json:"positions"`
}

// Models lists every table used by the backend
var Models = []any{
	&ScenarioRecord{},
	&TraceRecord{},
	&TraceFrameRecord{},
}

// Dependencies holds everything the backend needs
type Dependencies struct {
	DB *gorm.DB
	// OwnsDB closes DB when the backend is closed
	OwnsDB    bool
	Logger    *slog.Logger
	BatchSize int
}

// Backend implements the archive on top of GORM
type Backend struct {
	db        *gorm.DB
	ownsDB    bool
	logger    *slog.Logger
	batchSize int
}

// New creates a GORM archive backend
func New(deps Dependencies) *Backend {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := deps.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	return &Backend{
		db:        deps.DB,
		ownsDB:    deps.OwnsDB,
		logger:    logger,
		batchSize: size,
	}
}

// Init migrates the archive tables
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate archive schema: %w", err)
	}
	b.logger.Debug("Archive schema migrated", "dialect", b.db.Dialector.Name())
	return nil
}

// Close releases the connection if the backend opened it
func (b *Backend) Close() error {
	if !b.ownsDB {
		return nil
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", fs.ErrInvalid)
	}
	return nil
}

// SaveScenario inserts or replaces the named document
func (b *Backend) SaveScenario(name string, doc core.ScenarioDocument) error {
	if err := checkName(name); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode scenario: %w", err)
	}

	agents := 0
	for _, team := range doc.Teams {
		agents += len(team.Agents)
	}
	rec := ScenarioRecord{
		Name:     name,
		Teams:    len(doc.Teams),
		Agents:   agents,
		Document: datatypes.JSON(data),
	}

	err = b.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at", "teams", "agents", "document"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save scenario %s: %w", name, err)
	}

	b.logger.Info("Scenario archived", "name", name, "agents", agents)
	return nil
}

// LoadScenario returns the named document
func (b *Backend) LoadScenario(name string) (core.ScenarioDocument, error) {
	var rec ScenarioRecord
	err := b.db.Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.ScenarioDocument{}, fmt.Errorf("scenario %s not archived: %w", name, fs.ErrNotExist)
	}
	if err != nil {
		return core.ScenarioDocument{}, fmt.Errorf("failed to load scenario %s: %w", name, err)
	}
	return scenario.Decode(bytes.NewReader(rec.Document))
}

// ListScenarios returns the archived scenario names, sorted
func (b *Backend) ListScenarios() ([]string, error) {
	names := []string{}
	if err := b.db.Model(&ScenarioRecord{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// SaveTrace decodes the whole stream and replaces the named trace in one
// transaction. Later frames with the same time_sec win.
func (b *Backend) SaveTrace(name string, r io.Reader) (int, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	frames := make(map[int64][]core.PositionRecord)
	dec := trace.NewDecoder(r)
	for {
		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		frames[frame.TimeSec] = frame.Positions
	}
	if len(frames) == 0 {
		return 0, trace.ErrEmpty
	}

	times := make([]int64, 0, len(frames))
	for t := range frames {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	start := time.Now()
	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := deleteTrace(tx, name); err != nil {
			return err
		}

		header := TraceRecord{
			Name:    name,
			Frames:  len(times),
			MinTime: times[0],
			MaxTime: times[len(times)-1],
		}
		if err := tx.Create(&header).Error; err != nil {
			return err
		}

		batch := queue.NewBatcher(b.batchSize, func(recs []TraceFrameRecord) error {
			return tx.Create(&recs).Error
		})
		for _, t := range times {
			positions := frames[t]
			if positions == nil {
				positions = []core.PositionRecord{}
			}
			data, err := json.Marshal(positions)
			if err != nil {
				return err
			}
			err = batch.Push(TraceFrameRecord{
				TraceID:   header.ID,
				TimeSec:   t,
				Positions: datatypes.JSON(data),
			})
			if err != nil {
				return err
			}
		}
		return batch.Flush()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save trace %s: %w", name, err)
	}

	b.logger.Info("Trace archived", "name", name, "frames", len(times), "duration", time.Since(start))
	return len(times), nil
}

func deleteTrace(tx *gorm.DB, name string) error {
	var existing TraceRecord
	err := tx.Where("name = ?", name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := tx.Where("trace_id = ?", existing.ID).Delete(&TraceFrameRecord{}).Error; err != nil {
		return err
	}
	return tx.Delete(&existing).Error
}

// OpenTrace streams the named trace back as NDJSON ordered by time_sec.
func (b *Backend) OpenTrace(name string) (io.ReadCloser, error) {
	var header TraceRecord
	err := b.db.Where("name = ?", name).First(&header).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("trace %s not archived: %w", name, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trace %s: %w", name, err)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(b.streamFrames(header.ID, pw))
	}()
	return pr, nil
}

func (b *Backend) streamFrames(traceID uint, w io.Writer) error {
	rows, err := b.db.Model(&TraceFrameRecord{}).
		Where("trace_id = ?", traceID).
		Order("time_sec").
		Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	enc := trace.NewEncoder(w)
	for rows.Next() {
		var rec TraceFrameRecord
		if err := b.db.ScanRows(rows, &rec); err != nil {
			return err
		}
		frame := core.Frame{TimeSec: rec.TimeSec}
		if err := json.Unmarshal(rec.Positions, &frame.Positions); err != nil {
			return fmt.Errorf("frame %d: %w", rec.TimeSec, err)
		}
		if err := enc.Encode(frame); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ListTraces returns the archived trace names, sorted
func (b *Backend) ListTraces() ([]string, error) {
	names := []string{}
	if err := b.db.Model(&TraceRecord{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}
