package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/experiment"
)

type ExportData struct {
	Scene       string             `json:"scene"`
	Bodies      int                `json:"bodies"`
	Backend     string             `json:"backend"`
	Integrator  string             `json:"integrator"`
	Dt          float64            `json:"dt"`
	Frames      int                `json:"frames"`
	Times       []float64          `json:"times"`
	Energies    []float64          `json:"energies"`
	EnergyDrift float64            `json:"energy_drift"`
	Metrics     map[string]float64 `json:"metrics"`
}

func newExportData(cfg experiment.Config, result *dynamo.Result) ExportData {
	return ExportData{
		Scene:       cfg.Scene,
		Bodies:      cfg.Bodies,
		Backend:     cfg.Backend,
		Integrator:  cfg.Integrator,
		Dt:          cfg.Dt,
		Frames:      result.Frames,
		Times:       result.Times,
		Energies:    result.Energies,
		EnergyDrift: result.EnergyDrift,
		Metrics:     result.Metrics,
	}
}

func ExportJSON(path string, cfg experiment.Config, result *dynamo.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteJSON(file, cfg, result)
}

func WriteJSON(w io.Writer, cfg experiment.Config, result *dynamo.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExportData(cfg, result))
}
