package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/OCAP2/simtools/internal/api"
	"github.com/OCAP2/simtools/internal/config"
	"github.com/OCAP2/simtools/internal/scenario"
	"github.com/spf13/cobra"
)

type uploadOptions struct {
	name string
	tag  string
}

func newUploadCmd(a *app, kind api.Kind, archived *bool) *cobra.Command {
	var opts uploadOptions
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: fmt.Sprintf("Publish a %s to the web frontend", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind == api.KindScenario {
				return a.runScenarioUpload(cmd.Context(), args[0], opts)
			}
			return a.runTraceUpload(cmd.Context(), args[0], *archived, opts)
		},
	}
	cmd.Flags().StringVar(&opts.name, "name", "", "published name (default: file name)")
	cmd.Flags().StringVar(&opts.tag, "tag", "", "free-form tag shown by the frontend")
	return cmd
}

// apiClient returns a client for the configured frontend after checking it
// is reachable.
func (a *app) apiClient(ctx context.Context) (*api.Client, error) {
	cfg := config.GetAPIConfig()
	client := api.New(cfg.URL, cfg.Key)
	if err := client.Healthcheck(ctx); err != nil {
		a.logger.Error("Web frontend not reachable", "url", client.BaseURL(), "error", err)
		return nil, err
	}
	return client, nil
}

func (a *app) runScenarioUpload(ctx context.Context, path string, opts uploadOptions) error {
	doc, err := scenario.LoadFile(path)
	if err != nil {
		return err
	}

	meta := api.UploadMetadata{
		Kind:  api.KindScenario,
		Name:  opts.name,
		Tag:   opts.tag,
		Teams: len(doc.Teams),
	}
	for _, team := range doc.Teams {
		meta.Agents += len(team.Agents)
	}
	if meta.Name == "" {
		meta.Name = scenarioNameFor(path)
	}

	client, err := a.apiClient(ctx)
	if err != nil {
		return err
	}
	if err := client.UploadFile(ctx, path, meta); err != nil {
		return err
	}
	a.logger.Info("Scenario published", "name", meta.Name, "url", client.BaseURL())
	fmt.Fprintf(a.out, "published scenario %s to %s\n", meta.Name, client.BaseURL())
	return nil
}

func (a *app) runTraceUpload(ctx context.Context, source string, archived bool, opts uploadOptions) error {
	store, err := a.loadTrace(source, archived)
	if err != nil {
		return err
	}
	sum := store.Summary()

	teams := make(map[string]bool)
	for _, t := range store.Times() {
		for _, rec := range store.PositionsAt(t) {
			teams[string(rec.TeamID)] = true
		}
	}
	meta := api.UploadMetadata{
		Kind:        api.KindTrace,
		Name:        opts.name,
		Tag:         opts.tag,
		Teams:       len(teams),
		Agents:      sum.Agents,
		Frames:      sum.Frames,
		DurationSec: sum.MaxTime - sum.MinTime,
	}
	if meta.Name == "" {
		meta.Name = archiveNameFor(source)
	}

	client, err := a.apiClient(ctx)
	if err != nil {
		return err
	}

	if archived {
		backend, err := a.openBackend()
		if err != nil {
			return err
		}
		rc, err := backend.OpenTrace(source)
		if err != nil {
			return err
		}
		defer rc.Close()
		err = client.Upload(ctx, meta.Name+".ndjson", rc, meta)
		if err != nil {
			return err
		}
	} else if err := client.UploadFile(ctx, source, meta); err != nil {
		return err
	}

	a.logger.Info("Trace published", "name", meta.Name, "frames", meta.Frames, "url", client.BaseURL())
	fmt.Fprintf(a.out, "published trace %s (%d frames) to %s\n", meta.Name, meta.Frames, client.BaseURL())
	return nil
}

// scenarioNameFor strips directories and scenario extensions from a file path.
func scenarioNameFor(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".gz", ".json"} {
		if filepath.Ext(name) == ext {
			name = name[:len(name)-len(ext)]
		}
	}
	return name
}
