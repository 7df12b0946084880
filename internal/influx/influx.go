package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/OCAP2/simtools/internal/config"
	"github.com/OCAP2/simtools/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/OCAP2/simtools/internal/influx"

// Measurement is the measurement name of exported agent positions.
const Measurement = "agent_position"

// retention of the trace bucket
const retentionSeconds = 60 * 60 * 24 * 90

// ErrDisabled is returned by Connect when export is switched off in the config.
var ErrDisabled = errors.New("influx export is disabled")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	backupFile *os.File
	limiter    *rate.Limiter
}

// NewManager creates a new InfluxDB manager.
// MaxFramesPerSec <= 0 writes frames as fast as the server accepts them.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig) *Manager {
	limit := rate.Inf
	if cfg.MaxFramesPerSec > 0 {
		limit = rate.Limit(cfg.MaxFramesPerSec)
	}
	return &Manager{
		Logger:     log,
		BackupPath: cfg.BackupPath,
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// URL returns the server address built from the config.
func URL(cfg config.InfluxConfig) string {
	return fmt.Sprintf("%s://%s:%s", cfg.Protocol, cfg.Host, cfg.Port)
}

// Connect establishes a connection to InfluxDB. When the server cannot be
// reached, points are written as line protocol to the gzip backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		URL(m.cfg),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Err(err).Str("url", URL(m.cfg)).Str("backupPath", m.BackupPath).
			Msg("InfluxDB not reachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.IsValid = true
	m.Logger.Info().Str("url", URL(m.cfg)).Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	if m.BackupPath == "" {
		return fmt.Errorf("influx backup path not set")
	}
	if err := os.MkdirAll(filepath.Dir(m.BackupPath), 0755); err != nil {
		return fmt.Errorf("error creating backup dir: %w", err)
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.Client.OrganizationsAPI()

	// ensure org exists
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", m.cfg.Org).Msg("Error creating organization")
			return err
		}
	}

	// ensure bucket exists with 90 day retention
	buckets := m.Client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = buckets.CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

// PointsForFrame converts one frame into points, one per agent, stamped at
// base plus the frame's offset.
func PointsForFrame(frame core.Frame, base time.Time) []*influxdb2_write.Point {
	ts := base.Add(time.Duration(frame.TimeSec) * time.Second)
	points := make([]*influxdb2_write.Point, 0, len(frame.Positions))
	for _, p := range frame.Positions {
		points = append(points, influxdb2_write.NewPoint(
			Measurement,
			map[string]string{
				"agent_id": p.AgentID,
				"team_id":  string(p.TeamID),
				"role":     string(p.Role),
			},
			map[string]interface{}{
				"lat_deg": p.LatDeg,
				"lon_deg": p.LonDeg,
				"alt_m":   p.AltM,
			},
			ts,
		))
	}
	return points
}

// WriteFrames exports frames to InfluxDB or the backup file. It returns the
// number of points written.
func (m *Manager) WriteFrames(ctx context.Context, frames []core.Frame, base time.Time) (int, error) {
	if !m.IsValid && m.BackupWriter == nil {
		return 0, fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "influx.WriteFrames", trace.WithAttributes(
		attribute.Int("frames", len(frames)),
		attribute.Bool("backup", !m.IsValid),
	))
	defer span.End()

	written := 0
	for _, frame := range frames {
		if err := m.limiter.Wait(ctx); err != nil {
			return written, failSpan(span, err)
		}
		points := PointsForFrame(frame, base)
		if len(points) == 0 {
			continue
		}
		if err := m.writePoints(ctx, points); err != nil {
			return written, failSpan(span, err)
		}
		written += len(points)
	}
	span.SetAttributes(attribute.Int("points", written))

	m.Logger.Debug().Int("frames", len(frames)).Int("points", written).Bool("backup", !m.IsValid).
		Msg("Frames exported")
	return written, nil
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (m *Manager) writePoints(ctx context.Context, points []*influxdb2_write.Point) error {
	if m.IsValid {
		writer := m.Client.WriteAPIBlocking(m.cfg.Org, m.cfg.Bucket)
		if err := writer.WritePoint(ctx, points...); err != nil {
			return fmt.Errorf("error sending data to InfluxDB: %w", err)
		}
		return nil
	}

	for _, point := range points {
		lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
		if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
			return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
		}
	}
	return nil
}

// Close flushes the backup file and closes the client.
func (m *Manager) Close() error {
	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		errs = append(errs, m.backupFile.Close())
		m.BackupWriter = nil
		m.backupFile = nil
	}
	if m.Client != nil {
		m.Client.Close()
		m.Client = nil
	}
	m.IsValid = false
	return errors.Join(errs...)
}
