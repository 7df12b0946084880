// internal/storage/memory/memory.go
package memory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/OCAP2/simtools/internal/config"
	"github.com/OCAP2/simtools/internal/scenario"
	"github.com/OCAP2/simtools/internal/trace"
	"github.com/OCAP2/simtools/internal/util"
	"github.com/OCAP2/simtools/pkg/core"
)

const (
	scenarioExt = ".json"
	traceExt    = ".ndjson"
	gzipExt     = ".gz"
)

// Backend archives scenarios and traces as files in a directory. Saved
// scenarios are also kept encoded in memory so repeated loads skip the disk.
type Backend struct {
	cfg    config.MemoryConfig
	logger *slog.Logger

	scenarios map[string][]byte // keyed by sanitized name
	lastPath  string
	mu        sync.RWMutex
}

// New creates a new file archive backend
func New(cfg config.MemoryConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		cfg:       cfg,
		logger:    logger,
		scenarios: make(map[string][]byte),
	}
}

// Init creates the output directory
func (b *Backend) Init() error {
	if err := os.MkdirAll(b.dir(), 0755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}
	return nil
}

// Close drops the scenario cache
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scenarios = make(map[string][]byte)
	return nil
}

// LastWrittenPath returns the file written by the last successful save
func (b *Backend) LastWrittenPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastPath
}

func (b *Backend) dir() string {
	if b.cfg.OutputDir == "" {
		return "."
	}
	return b.cfg.OutputDir
}

func (b *Backend) path(name, ext string, compress bool) string {
	if compress {
		ext += gzipExt
	}
	return filepath.Join(b.dir(), name+ext)
}

func sanitize(name string) (string, error) {
	safe := util.SafeName(name)
	if safe == "" {
		return "", fmt.Errorf("%w: empty name %q", fs.ErrInvalid, name)
	}
	return safe, nil
}

// existing returns the stored file for name, preferring the configured compression.
func (b *Backend) existing(name, ext string) (string, error) {
	for _, compress := range []bool{b.cfg.CompressOutput, !b.cfg.CompressOutput} {
		p := b.path(name, ext, compress)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s not archived: %w", name, fs.ErrNotExist)
}

// replace moves tmp into place and removes the variant with the other compression.
func (b *Backend) replace(tmp, name, ext string) (string, error) {
	final := b.path(name, ext, b.cfg.CompressOutput)
	if err := os.Rename(tmp, final); err != nil {
		return "", fmt.Errorf("failed to move archive file: %w", err)
	}
	other := b.path(name, ext, !b.cfg.CompressOutput)
	if err := os.Remove(other); err != nil && !errors.Is(err, fs.ErrNotExist) {
		b.logger.Warn("Failed to remove stale archive file", "path", other, "error", err)
	}
	return final, nil
}

func (b *Backend) tempFile(pattern string) (string, error) {
	f, err := os.CreateTemp(b.dir(), pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	return name, nil
}

// SaveScenario writes the document as <name>.json (or .json.gz)
func (b *Backend) SaveScenario(name string, doc core.ScenarioDocument) error {
	safe, err := sanitize(name)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := scenario.Encode(&buf, doc); err != nil {
		return fmt.Errorf("failed to encode scenario: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tmp, err := b.tempFile(safe + ".*.tmp")
	if err != nil {
		return err
	}
	if err := scenario.SaveFile(tmp, doc, b.cfg.CompressOutput); err != nil {
		os.Remove(tmp)
		return err
	}
	final, err := b.replace(tmp, safe, scenarioExt)
	if err != nil {
		os.Remove(tmp)
		return err
	}

	b.scenarios[safe] = buf.Bytes()
	b.lastPath = final
	b.logger.Info("Scenario archived", "name", safe, "path", final)
	return nil
}

// LoadScenario returns a previously saved document
func (b *Backend) LoadScenario(name string) (core.ScenarioDocument, error) {
	safe, err := sanitize(name)
	if err != nil {
		return core.ScenarioDocument{}, err
	}

	b.mu.RLock()
	cached, ok := b.scenarios[safe]
	b.mu.RUnlock()
	if ok {
		return scenario.Decode(bytes.NewReader(cached))
	}

	path, err := b.existing(safe, scenarioExt)
	if err != nil {
		return core.ScenarioDocument{}, fmt.Errorf("scenario %w", err)
	}
	doc, err := scenario.LoadFile(path)
	if err != nil {
		return core.ScenarioDocument{}, err
	}

	var buf bytes.Buffer
	if err := scenario.Encode(&buf, doc); err == nil {
		b.mu.Lock()
		b.scenarios[safe] = buf.Bytes()
		b.mu.Unlock()
	}
	return doc, nil
}

// SaveTrace validates r frame by frame and writes it as <name>.ndjson (or .ndjson.gz).
// A stream with a malformed line or no frames leaves any earlier trace of the
// same name untouched.
func (b *Backend) SaveTrace(name string, r io.Reader) (int, error) {
	safe, err := sanitize(name)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tmp, err := b.tempFile(safe + ".*.tmp")
	if err != nil {
		return 0, err
	}

	frames, err := copyFrames(tmp, r, b.cfg.CompressOutput)
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	final, err := b.replace(tmp, safe, traceExt)
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}

	b.lastPath = final
	b.logger.Info("Trace archived", "name", safe, "frames", frames, "path", final)
	return frames, nil
}

func copyFrames(path string, r io.Reader, compress bool) (int, error) {
	w, err := util.CreateFile(path, compress)
	if err != nil {
		return 0, err
	}

	dec := trace.NewDecoder(r)
	enc := trace.NewEncoder(w)
	frames := 0
	for {
		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err == nil {
			err = enc.Encode(frame)
		}
		if err != nil {
			w.Close()
			return 0, err
		}
		frames++
	}

	if err := w.Close(); err != nil {
		return 0, err
	}
	if frames == 0 {
		return 0, trace.ErrEmpty
	}
	return frames, nil
}

// OpenTrace returns a reader over the stored NDJSON, decompressed
func (b *Backend) OpenTrace(name string) (io.ReadCloser, error) {
	safe, err := sanitize(name)
	if err != nil {
		return nil, err
	}
	path, err := b.existing(safe, traceExt)
	if err != nil {
		return nil, fmt.Errorf("trace %w", err)
	}
	rc, err := util.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// ListScenarios returns the names of archived scenarios, sorted
func (b *Backend) ListScenarios() ([]string, error) {
	return b.list(scenarioExt)
}

// ListTraces returns the names of archived traces, sorted
func (b *Backend) ListTraces() ([]string, error) {
	return b.list(traceExt)
}

func (b *Backend) list(ext string) ([]string, error) {
	entries, err := os.ReadDir(b.dir())
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := strings.TrimSuffix(e.Name(), gzipExt)
		if !strings.HasSuffix(base, ext) {
			continue
		}
		name := strings.TrimSuffix(base, ext)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
