package scenario

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/OCAP2/simtools/internal/util"
	"github.com/OCAP2/simtools/pkg/core"
)

// Encode writes doc as indented JSON
func Encode(w io.Writer, doc core.ScenarioDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode scenario: %w", err)
	}
	return nil
}

// Decode reads a scenario document
func Decode(r io.Reader) (core.ScenarioDocument, error) {
	var doc core.ScenarioDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return core.ScenarioDocument{}, fmt.Errorf("failed to decode scenario: %w", err)
	}
	return doc, nil
}

// SaveFile writes doc to path, gzipped when compress is set
func SaveFile(path string, doc core.ScenarioDocument, compress bool) error {
	w, err := util.CreateFile(path, compress)
	if err != nil {
		return fmt.Errorf("failed to create scenario file: %w", err)
	}
	if err := Encode(w, doc); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}
	return nil
}

// LoadFile reads a scenario document from path. Gzip input is detected.
func LoadFile(path string) (core.ScenarioDocument, error) {
	r, err := util.OpenFile(path)
	if err != nil {
		return core.ScenarioDocument{}, fmt.Errorf("failed to open scenario file: %w", err)
	}
	defer r.Close()
	return Decode(r)
}
