package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/simtools/internal/api"
	"github.com/OCAP2/simtools/internal/config"
	"github.com/OCAP2/simtools/internal/influx"
	"github.com/OCAP2/simtools/internal/playback"
	"github.com/OCAP2/simtools/internal/trace"
	"github.com/OCAP2/simtools/internal/util"
	"github.com/OCAP2/simtools/pkg/core"
	"github.com/spf13/cobra"
)

type playOptions struct {
	from     int64
	step     int64
	interval time.Duration
}

func newTraceCmd(a *app) *cobra.Command {
	var archived bool
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect, replay, archive, export and publish recorded traces",
	}
	cmd.PersistentFlags().BoolVar(&archived, "archived", false, "treat <file> as the name of an archived trace")

	summaryCmd := &cobra.Command{
		Use:   "summary <file>",
		Short: "Print frame count, time range and extent of a trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.loadTrace(args[0], archived)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(store.Summary())
		},
	}

	atCmd := &cobra.Command{
		Use:   "at <file> <time_sec>",
		Short: "Print the positions recorded at an exact time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid time %q: %w", args[1], err)
			}
			store, err := a.loadTrace(args[0], archived)
			if err != nil {
				return err
			}
			view := store.View(t)
			if view.Len() == 0 {
				fmt.Fprintf(a.out, "no positions at t=%d\n", t)
				return nil
			}
			a.printView(view, true)
			return nil
		},
	}

	var play playOptions
	playCmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Replay a trace, printing each frame the cursor lands on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.loadTrace(args[0], archived)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.runPlay(ctx, cmd, store, play)
		},
	}
	playCmd.Flags().Int64Var(&play.from, "from", 0, "start time (default: first frame)")
	playCmd.Flags().Int64Var(&play.step, "step", 0, "seconds per tick (default viewer.stepSec)")
	playCmd.Flags().DurationVar(&play.interval, "interval", 0, "wall time per tick (default viewer.interval)")

	var archiveName string
	archiveCmd := &cobra.Command{
		Use:   "archive <file>",
		Short: "Validate a trace file and store it in the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTraceArchive(args[0], archiveName)
		},
	}
	archiveCmd.Flags().StringVar(&archiveName, "name", "", "archive name (default: file name)")

	var base string
	influxCmd := &cobra.Command{
		Use:   "influx <file>",
		Short: "Export a trace to InfluxDB as agent_position points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.loadTrace(args[0], archived)
			if err != nil {
				return err
			}
			return a.runTraceInflux(cmd.Context(), store, base)
		},
	}
	influxCmd.Flags().StringVar(&base, "base", "", "RFC3339 wall time of time_sec 0 (default: now)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived traces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openBackend()
			if err != nil {
				return err
			}
			names, err := backend.ListTraces()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}

	cmd.AddCommand(summaryCmd, atCmd, playCmd, archiveCmd, influxCmd, listCmd, newUploadCmd(a, api.KindTrace, &archived))
	return cmd
}

// loadTrace reads a trace file, or an archived trace when archived is set.
func (a *app) loadTrace(source string, archived bool) (*trace.Store, error) {
	store := trace.NewStore(a.logger)
	if !archived {
		if _, err := store.LoadFile(source); err != nil {
			return nil, err
		}
		return store, nil
	}

	backend, err := a.openBackend()
	if err != nil {
		return nil, err
	}
	rc, err := backend.OpenTrace(source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	if _, err := store.Load(rc); err != nil {
		return nil, err
	}
	return store, nil
}

func (a *app) printView(view *trace.FrameView, detail bool) {
	groups := make([]string, 0, len(view.Keys()))
	for _, key := range view.Keys() {
		groups = append(groups, fmt.Sprintf("%s/%s=%d", key.Team, key.Role, len(view.Group(key.Team, key.Role))))
	}
	fmt.Fprintf(a.out, "t=%d agents=%d %s\n", view.Time(), view.Len(), strings.Join(groups, " "))
	if !detail {
		return
	}
	for _, key := range view.Keys() {
		for _, rec := range view.Group(key.Team, key.Role) {
			fmt.Fprintf(a.out, "  %s %s %s %.6f,%.6f alt=%.1f\n",
				rec.AgentID, rec.TeamID, rec.Role, rec.LatDeg, rec.LonDeg, rec.AltM)
		}
	}
}

func (a *app) runPlay(ctx context.Context, cmd *cobra.Command, store *trace.Store, opts playOptions) error {
	viewer := config.GetViewerConfig()
	step := viewer.StepSec
	if cmd.Flags().Changed("step") {
		step = opts.step
	}
	interval := viewer.Interval
	if cmd.Flags().Changed("interval") {
		interval = opts.interval
	}

	player, err := playback.New(store, playback.Options{
		StepSec:  step,
		Interval: interval,
		OnFrame:  func(v *trace.FrameView) { a.printView(v, false) },
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}

	from := store.Summary().MinTime
	if cmd.Flags().Changed("from") {
		from = opts.from
	}
	if err := player.Seek(from); err != nil {
		return err
	}
	if err := player.Start(ctx); err != nil {
		return err
	}
	<-player.Done()

	if errors.Is(ctx.Err(), context.Canceled) {
		fmt.Fprintf(a.out, "stopped at t=%d\n", player.Current())
	}
	return nil
}

func (a *app) runTraceArchive(path, name string) error {
	if name == "" {
		name = archiveNameFor(path)
	}

	f, err := util.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	backend, err := a.openBackend()
	if err != nil {
		return err
	}
	frames, err := backend.SaveTrace(name, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "archived %d frames as %s %s\n", frames, name, archivedPath(backend))
	return nil
}

// archiveNameFor strips directories and trace extensions from a file path.
func archiveNameFor(path string) string {
	name := path
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".ndjson")
	name = strings.TrimSuffix(name, ".jsonl")
	return util.SafeName(name)
}

func (a *app) runTraceInflux(ctx context.Context, store *trace.Store, base string) error {
	start := time.Now().UTC()
	if base != "" {
		var err error
		start, err = time.Parse(time.RFC3339, base)
		if err != nil {
			return fmt.Errorf("invalid --base: %w", err)
		}
	}

	times := store.Times()
	frames := make([]core.Frame, len(times))
	for i, t := range times {
		frames[i] = core.Frame{TimeSec: t, Positions: store.PositionsAt(t)}
	}

	manager := influx.NewManager(a.zlog, config.GetInfluxConfig())
	if err := manager.Connect(ctx); err != nil {
		if errors.Is(err, influx.ErrDisabled) {
			return fmt.Errorf("%w: set influx.enabled in %s", err, config.FileName)
		}
		return err
	}
	defer manager.Close()

	points, err := manager.WriteFrames(ctx, frames, start)
	if err != nil {
		return err
	}
	target := influx.URL(config.GetInfluxConfig())
	if !manager.IsValid {
		target = manager.BackupPath
	}
	fmt.Fprintf(a.out, "exported %d points from %d frames to %s\n", points, len(frames), target)
	return nil
}
