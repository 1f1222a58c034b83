package registry

import (
	"fmt"

	"github.com/LuoYun-Team/soundflow-engine/internal/analyzer"
	"github.com/LuoYun-Team/soundflow-engine/internal/filter"
	"github.com/LuoYun-Team/soundflow-engine/internal/modifier"
)

// RegisterBuiltins wires the engine's own built-in modifier/analyzer types
// into the process-global registry. It is not invoked automatically, so
// tests can exercise an empty registry deliberately; within this module only
// the registry tests call it.
func RegisterBuiltins() {
	RegisterModifier("biquad_chain", buildBiquadChain)
	RegisterAnalyzer("peak_rms", buildPeakRMS)
}

func buildBiquadChain(params map[string]any) (modifier.Modifier, error) {
	chain := filter.NewChain()
	stages, _ := params["stages"].([]any)
	for _, raw := range stages {
		stage, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		f, err := buildFilterStage(stage)
		if err != nil {
			return nil, err
		}
		if err := chain.AddFilter(f); err != nil {
			return nil, err
		}
	}
	return &modifier.BiquadModifier{Chain: chain}, nil
}

func buildFilterStage(stage map[string]any) (*filter.Filter, error) {
	kind, _ := stage["type"].(string)
	sampleRate := floatParam(stage, "sample_rate_hz", 48000)
	frequency := floatParam(stage, "frequency_hz", 1000)
	q := floatParam(stage, "q", 0.707)
	channels := int(floatParam(stage, "channels", 2))
	gainDB := floatParam(stage, "gain_db", 0)
	shelfSlope := floatParam(stage, "shelf_slope", 1)

	switch filter.Type(kind) {
	case filter.HighPass:
		return filter.NewHighPass(sampleRate, frequency, q, channels)
	case filter.BandPass:
		return filter.NewBandPass(sampleRate, frequency, q, channels)
	case filter.Notch:
		return filter.NewNotch(sampleRate, frequency, q, channels)
	case filter.AllPass:
		return filter.NewAllPass(sampleRate, frequency, q, channels)
	case filter.Peaking:
		return filter.NewPeaking(sampleRate, frequency, q, gainDB, channels)
	case filter.LowShelf:
		return filter.NewLowShelf(sampleRate, frequency, q, gainDB, shelfSlope, channels)
	case filter.HighShelf:
		return filter.NewHighShelf(sampleRate, frequency, q, gainDB, shelfSlope, channels)
	default:
		return filter.NewLowPass(sampleRate, frequency, q, channels)
	}
}

func floatParam(params map[string]any, key string, fallback float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f
		}
	}
	return fallback
}

func buildPeakRMS(map[string]any) (analyzer.Analyzer, error) {
	return analyzer.NewPeakRMS(), nil
}
