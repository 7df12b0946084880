package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/OCAP2/simtools/internal/config"
	"github.com/OCAP2/simtools/internal/geo"
	"github.com/OCAP2/simtools/internal/scenario"
	"github.com/OCAP2/simtools/internal/util"
	"github.com/OCAP2/simtools/pkg/core"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	cmdA    string
	cmdB    string
	seed    uint64
	name    string
	out     string
	archive string
}

func newGenerateCmd(a *app) *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a scenario with randomized routes for both teams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.cmdA, "cmd-a", "", `team A command position as "lat,lon"`)
	cmd.Flags().StringVar(&opts.cmdB, "cmd-b", "", `team B command position as "lat,lon"`)
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "seed for reproducible output")
	cmd.Flags().StringVar(&opts.name, "name", "scenario", "scenario name")
	cmd.Flags().StringVar(&opts.out, "out", "", "output file (default <output.dir>/<name>.json)")
	cmd.Flags().StringVar(&opts.archive, "archive", "", "also store the scenario in the archive under this name")
	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, opts generateOptions) error {
	cfg, err := generatorConfig(config.GetGeneratorConfig())
	if err != nil {
		return err
	}
	if opts.cmdA != "" {
		if cfg.A.Command, err = parseCommand("--cmd-a", opts.cmdA); err != nil {
			return err
		}
	}
	if opts.cmdB != "" {
		if cfg.B.Command, err = parseCommand("--cmd-b", opts.cmdB); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("seed") {
		seed := opts.seed
		cfg.Seed = &seed
	}

	perf, err := performance()
	if err != nil {
		return err
	}

	editor := scenario.NewEditor(a.logger)
	if err := editor.Generate(cfg); err != nil {
		return err
	}
	doc, err := editor.Document(perf)
	if err != nil {
		return err
	}

	outCfg := config.GetOutputConfig()
	path := opts.out
	compress := outCfg.Compress
	if path == "" {
		name := util.SafeName(opts.name)
		if name == "" {
			return fmt.Errorf("invalid scenario name %q", opts.name)
		}
		path = filepath.Join(outCfg.Dir, name+".json")
		if compress {
			path += ".gz"
		}
	} else {
		compress = filepath.Ext(path) == ".gz"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output dir: %w", err)
	}
	if err := scenario.SaveFile(path, doc, compress); err != nil {
		return err
	}
	a.logger.Info("Scenario written", "path", path, "seeded", cfg.Seed != nil)
	fmt.Fprintf(a.out, "wrote %s\n", path)
	printRoster(a.out, doc)

	if opts.archive != "" {
		backend, err := a.openBackend()
		if err != nil {
			return err
		}
		if err := backend.SaveScenario(opts.archive, doc); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "archived as %s %s\n", opts.archive, archivedPath(backend))
	}
	return nil
}

func parseCommand(flag, value string) (*core.LatLon, error) {
	p, err := geo.ParseLatLon(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", flag, err)
	}
	return &p, nil
}

// generatorConfig converts the loaded settings into generator input.
func generatorConfig(gc config.GeneratorConfig) (scenario.Config, error) {
	cfg := scenario.Config{
		SpawnDXM:      gc.SpawnDxM,
		SpawnDYM:      gc.SpawnDyM,
		MinSpeedKph:   gc.MinSpeedKph,
		MaxSpeedKph:   gc.MaxSpeedKph,
		MinPoints:     gc.MinPoints,
		NoiseScaleDeg: gc.NoiseScaleDeg,
		Seed:          gc.Seed,
	}

	var err error
	if cfg.A, err = teamConfig("generator.teamA", gc.TeamA); err != nil {
		return scenario.Config{}, err
	}
	if cfg.B, err = teamConfig("generator.teamB", gc.TeamB); err != nil {
		return scenario.Config{}, err
	}
	return cfg, nil
}

func teamConfig(key string, tc config.TeamConfig) (scenario.TeamConfig, error) {
	out := scenario.TeamConfig{
		Name:       tc.Name,
		Scouts:     tc.Scouts,
		Messengers: tc.Messengers,
		Attackers:  tc.Attackers,
	}
	if tc.Command != "" {
		cmd, err := parseCommand(key+".command", tc.Command)
		if err != nil {
			return scenario.TeamConfig{}, err
		}
		out.Command = cmd
	}
	return out, nil
}

// performance returns the configured capability table, or the built-in one
// when none is configured.
func performance() (core.Performance, error) {
	raw, err := config.GetPerformance()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return scenario.DefaultPerformance(), nil
	}
	perf := make(core.Performance, len(raw))
	for role, caps := range raw {
		c := make(core.Capabilities, len(caps))
		for k, v := range caps {
			c[k] = v
		}
		perf[core.Role(role)] = c
	}
	return perf, nil
}

func printRoster(w io.Writer, doc core.ScenarioDocument) {
	for _, team := range doc.Teams {
		counts := make(map[core.Role]int)
		var length float64
		for _, agent := range team.Agents {
			counts[agent.Role]++
			length += geo.RouteLengthDeg(agent.Route)
		}
		fmt.Fprintf(w, "team %s (%s): %d agents", team.ID, team.Name, len(team.Agents))
		for _, role := range core.Roles {
			fmt.Fprintf(w, ", %s=%d", role, counts[role])
		}
		fmt.Fprintf(w, ", route length %.3f deg\n", length)
	}
}
