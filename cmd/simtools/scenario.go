package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/OCAP2/simtools/internal/api"
	"github.com/OCAP2/simtools/internal/geo"
	"github.com/OCAP2/simtools/internal/scenario"
	"github.com/OCAP2/simtools/pkg/core"
	"github.com/spf13/cobra"
)

// errInvalidScenario is returned by "scenario check" when problems were found
var errInvalidScenario = errors.New("scenario has problems")

type editOptions struct {
	team     int
	agent    int
	waypoint int
	lat      float64
	lon      float64
	out      string
}

func newScenarioCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Edit, check, list and publish scenario documents",
	}

	var edit editOptions
	editCmd := &cobra.Command{
		Use:   "edit <file>",
		Short: "Move one waypoint of an agent's route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScenarioEdit(args[0], edit)
		},
	}
	editCmd.Flags().IntVar(&edit.team, "team", 0, "team index")
	editCmd.Flags().IntVar(&edit.agent, "agent", 0, "agent index within the team")
	editCmd.Flags().IntVar(&edit.waypoint, "waypoint", 0, "waypoint index within the route")
	editCmd.Flags().Float64Var(&edit.lat, "lat", 0, "new latitude in degrees")
	editCmd.Flags().Float64Var(&edit.lon, "lon", 0, "new longitude in degrees")
	editCmd.Flags().StringVar(&edit.out, "out", "", "output file (default: overwrite the input)")
	_ = editCmd.MarkFlagRequired("lat")
	_ = editCmd.MarkFlagRequired("lon")

	checkCmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a scenario and report stale scout references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScenarioCheck(args[0])
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openBackend()
			if err != nil {
				return err
			}
			names, err := backend.ListScenarios()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}

	cmd.AddCommand(editCmd, checkCmd, listCmd, newUploadCmd(a, api.KindScenario, nil))
	return cmd
}

func (a *app) runScenarioEdit(path string, opts editOptions) error {
	doc, err := scenario.LoadFile(path)
	if err != nil {
		return err
	}

	editor := scenario.NewEditor(a.logger)
	editor.Load(doc)
	if err := editor.MoveWaypoint(opts.team, opts.agent, opts.waypoint, opts.lat, opts.lon); err != nil {
		return err
	}
	edited, err := editor.Document(nil)
	if err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		out = path
	}
	if err := scenario.SaveFile(out, edited, filepath.Ext(out) == ".gz"); err != nil {
		return err
	}

	agent := edited.Teams[opts.team].Agents[opts.agent]
	a.logger.Info("Waypoint moved",
		"team", edited.Teams[opts.team].ID,
		"agent", agent.ID,
		"waypoint", opts.waypoint,
		"lat", opts.lat,
		"lon", opts.lon,
	)
	fmt.Fprintf(a.out, "moved %s waypoint %d to %.6f,%.6f in %s\n", agent.ID, opts.waypoint, opts.lat, opts.lon, out)
	return nil
}

func (a *app) runScenarioCheck(path string) error {
	doc, err := scenario.LoadFile(path)
	if err != nil {
		return err
	}

	printRoster(a.out, doc)
	for _, team := range doc.Teams {
		var points []core.LatLon
		for _, agent := range team.Agents {
			for _, wp := range agent.Route {
				points = append(points, core.LatLon{Lat: wp.LatDeg, Lon: wp.LonDeg})
			}
		}
		if b, ok := geo.BoundsOf(points); ok {
			fmt.Fprintf(a.out, "team %s extent: %.6f,%.6f .. %.6f,%.6f\n",
				team.ID, b.Min.Lat, b.Min.Lon, b.Max.Lat, b.Max.Lon)
		}
	}

	failed := false
	if err := scenario.Validate(doc); err != nil {
		failed = true
		fmt.Fprintf(a.out, "problems:\n%v\n", err)
	}

	stale := scenario.CheckReferences(doc)
	for _, ref := range stale {
		fmt.Fprintf(a.out, "stale: %s\n", ref)
	}
	if len(stale) > 0 {
		a.logger.Warn("Scenario has stale scout references", "path", path, "count", len(stale))
	}

	if failed {
		return errInvalidScenario
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}
