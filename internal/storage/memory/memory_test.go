// internal/storage/memory/memory_test.go
package memory

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/OCAP2/simtools/internal/config"
	"github.com/OCAP2/simtools/internal/trace"
	"github.com/OCAP2/simtools/pkg/core"
)

const sampleTrace = `{"time_sec":0,"positions":[{"agent_id":"A_CMD","team_id":"A","role":"commander","lat_deg":33.5,"lon_deg":130.3}]}
{"time_sec":60,"positions":[{"object_id":"B_S00","team_id":"B","role":"scout","lat_deg":31.2,"lon_deg":121.4,"alt_m":12}]}
`

func sampleDocument() core.ScenarioDocument {
	return core.ScenarioDocument{
		Performance: core.Performance{
			core.RoleScout: {"comm_range_m": 5000},
		},
		Teams: []core.Team{
			{
				ID:   core.TeamA,
				Name: "Alpha Team",
				Agents: []core.Agent{
					{ID: "A_CMD", Role: core.RoleCommander, Route: []core.Waypoint{{LatDeg: 1, LonDeg: 2}, {LatDeg: 3, LonDeg: 4}}},
					{ID: "A_S00", Role: core.RoleScout, StartSec: 12, Network: []string{"A_M00"},
						Route: []core.Waypoint{{LatDeg: 1, LonDeg: 2, SpeedKph: 40}, {LatDeg: 3, LonDeg: 4}}},
				},
			},
			{ID: core.TeamB, Name: "Bravo Team", Agents: []core.Agent{}},
		},
	}
}

func newBackend(t *testing.T, compress bool) *Backend {
	t.Helper()
	b := New(config.MemoryConfig{
		OutputDir:      filepath.Join(t.TempDir(), "archive"),
		CompressOutput: compress,
	}, nil)
	if err := b.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return b
}

func TestNew(t *testing.T) {
	cfg := config.MemoryConfig{
		OutputDir:      "/tmp/test",
		CompressOutput: true,
	}
	b := New(cfg, nil)

	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.cfg.OutputDir != "/tmp/test" {
		t.Errorf("expected OutputDir=/tmp/test, got %s", b.cfg.OutputDir)
	}
	if !b.cfg.CompressOutput {
		t.Error("expected CompressOutput=true")
	}
	if b.scenarios == nil {
		t.Error("scenarios map not initialized")
	}
}

func TestInitAndClose(t *testing.T) {
	b := newBackend(t, false)

	if _, err := os.Stat(b.cfg.OutputDir); err != nil {
		t.Errorf("output dir not created: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestScenarioRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		b := newBackend(t, compress)
		doc := sampleDocument()

		if err := b.SaveScenario("run 1", doc); err != nil {
			t.Fatalf("SaveScenario failed: %v", err)
		}

		want := filepath.Join(b.cfg.OutputDir, "run_1.json")
		if compress {
			want += ".gz"
		}
		if got := b.LastWrittenPath(); got != want {
			t.Errorf("expected path %s, got %s", want, got)
		}

		// bypass the cache to read the file back
		_ = b.Close()
		got, err := b.LoadScenario("run 1")
		if err != nil {
			t.Fatalf("LoadScenario failed: %v", err)
		}
		if len(got.Teams) != 2 || len(got.Teams[0].Agents) != 2 {
			t.Fatalf("unexpected document: %+v", got)
		}
		if got.Teams[0].Agents[1].Network[0] != "A_M00" {
			t.Errorf("expected network to survive, got %v", got.Teams[0].Agents[1].Network)
		}
		if got.Performance[core.RoleScout]["comm_range_m"] != 5000 {
			t.Errorf("expected performance to survive, got %v", got.Performance)
		}
	}
}

func TestLoadScenario_CacheDoesNotAlias(t *testing.T) {
	b := newBackend(t, false)
	if err := b.SaveScenario("s", sampleDocument()); err != nil {
		t.Fatalf("SaveScenario failed: %v", err)
	}

	first, _ := b.LoadScenario("s")
	first.Teams[0].Name = "changed"

	second, err := b.LoadScenario("s")
	if err != nil {
		t.Fatalf("LoadScenario failed: %v", err)
	}
	if second.Teams[0].Name != "Alpha Team" {
		t.Errorf("cached document was mutated: %s", second.Teams[0].Name)
	}
}

func TestSaveScenario_SwitchingCompressionRemovesOldFile(t *testing.T) {
	b := newBackend(t, false)
	if err := b.SaveScenario("s", sampleDocument()); err != nil {
		t.Fatalf("SaveScenario failed: %v", err)
	}

	b.cfg.CompressOutput = true
	if err := b.SaveScenario("s", sampleDocument()); err != nil {
		t.Fatalf("SaveScenario failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(b.cfg.OutputDir, "s.json")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected plain file to be removed, got %v", err)
	}
	names, _ := b.ListScenarios()
	if len(names) != 1 || names[0] != "s" {
		t.Errorf("expected [s], got %v", names)
	}
}

func TestLoadScenario_NotFound(t *testing.T) {
	b := newBackend(t, false)

	_, err := b.LoadScenario("missing")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestInvalidName(t *testing.T) {
	b := newBackend(t, false)

	if err := b.SaveScenario("  ", sampleDocument()); !errors.Is(err, fs.ErrInvalid) {
		t.Errorf("expected invalid name error, got %v", err)
	}
	if _, err := b.SaveTrace(`""`, strings.NewReader(sampleTrace)); !errors.Is(err, fs.ErrInvalid) {
		t.Errorf("expected invalid name error, got %v", err)
	}
}

func TestTraceRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		b := newBackend(t, compress)

		n, err := b.SaveTrace("patrol", strings.NewReader(sampleTrace))
		if err != nil {
			t.Fatalf("SaveTrace failed: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 frames, got %d", n)
		}

		rc, err := b.OpenTrace("patrol")
		if err != nil {
			t.Fatalf("OpenTrace failed: %v", err)
		}
		store := trace.NewStore(nil)
		summary, err := store.Load(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if summary.Frames != 2 || summary.MaxTime != 60 {
			t.Errorf("unexpected summary: %+v", summary)
		}

		got := store.PositionsAt(60)
		if len(got) != 1 || got[0].AgentID != "B_S00" || got[0].AltM != 12 {
			t.Errorf("unexpected positions at 60: %+v", got)
		}
	}
}

func TestSaveTrace_InvalidKeepsPrevious(t *testing.T) {
	b := newBackend(t, false)
	if _, err := b.SaveTrace("patrol", strings.NewReader(sampleTrace)); err != nil {
		t.Fatalf("SaveTrace failed: %v", err)
	}
	previous := b.LastWrittenPath()

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"malformed", "{\"time_sec\":0,\"positions\":[]}\nnot json\n", trace.ErrMalformed},
		{"empty", "\n\n", trace.ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.SaveTrace("patrol", strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}

			rc, err := b.OpenTrace("patrol")
			if err != nil {
				t.Fatalf("OpenTrace failed: %v", err)
			}
			data, _ := io.ReadAll(rc)
			rc.Close()
			if strings.Count(string(data), "\n") != 2 {
				t.Errorf("previous trace was modified: %q", data)
			}
			if b.LastWrittenPath() != previous {
				t.Errorf("last path changed to %s", b.LastWrittenPath())
			}
		})
	}

	// no temp files are left behind
	entries, _ := os.ReadDir(b.cfg.OutputDir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestOpenTrace_NotFound(t *testing.T) {
	b := newBackend(t, false)

	_, err := b.OpenTrace("missing")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestList(t *testing.T) {
	b := newBackend(t, true)

	for _, name := range []string{"zulu", "alpha", "mike"} {
		if err := b.SaveScenario(name, sampleDocument()); err != nil {
			t.Fatalf("SaveScenario failed: %v", err)
		}
	}
	if _, err := b.SaveTrace("bravo", strings.NewReader(sampleTrace)); err != nil {
		t.Fatalf("SaveTrace failed: %v", err)
	}
	// unrelated files are ignored
	_ = os.WriteFile(filepath.Join(b.cfg.OutputDir, "notes.txt"), []byte("x"), 0644)

	scenarios, err := b.ListScenarios()
	if err != nil {
		t.Fatalf("ListScenarios failed: %v", err)
	}
	if strings.Join(scenarios, ",") != "alpha,mike,zulu" {
		t.Errorf("unexpected scenarios: %v", scenarios)
	}

	traces, err := b.ListTraces()
	if err != nil {
		t.Fatalf("ListTraces failed: %v", err)
	}
	if len(traces) != 1 || traces[0] != "bravo" {
		t.Errorf("unexpected traces: %v", traces)
	}
}

func TestList_MissingDir(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: filepath.Join(t.TempDir(), "never")}, nil)

	names, err := b.ListTraces()
	if err != nil {
		t.Fatalf("ListTraces failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no names, got %v", names)
	}
}

func TestConcurrentSaves(t *testing.T) {
	b := newBackend(t, false)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.SaveScenario("shared", sampleDocument())
			_, _ = b.LoadScenario("shared")
		}()
	}
	wg.Wait()

	if _, err := b.LoadScenario("shared"); err != nil {
		t.Errorf("LoadScenario failed: %v", err)
	}
}
