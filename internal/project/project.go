// Package project persists a Composition's structural state (tracks,
// segments, settings, provider references) to a YAML document (§6
// "Project file") and reconstructs it on load, leaving actual PCM
// rendering to the segment/provider/composition packages.
//
// Grounded on the teacher's gopkg.in/yaml.v3 config-file round-trip in
// internal/httpcontroller/updateconfig.go and internal/backup/backup.go
// (read-whole-file, yaml.Unmarshal/Marshal, write-whole-file), simplified
// from the teacher's yaml.Node-based partial-field-patch approach to a
// plain struct marshal since a project file has no human-edited config
// sections needing comment preservation.
package project

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/LuoYun-Team/soundflow-engine/internal/audioformat"
	"github.com/LuoYun-Team/soundflow-engine/internal/composition"
	"github.com/LuoYun-Team/soundflow-engine/internal/dsp"
	"github.com/LuoYun-Team/soundflow-engine/internal/engineerr"
	"github.com/LuoYun-Team/soundflow-engine/internal/provider"
	"github.com/LuoYun-Team/soundflow-engine/internal/segment"
	"github.com/LuoYun-Team/soundflow-engine/internal/track"
)

// Document is the on-disk representation of a Composition.
type Document struct {
	Format       FormatDoc         `yaml:"format"`
	MasterVolume float64           `yaml:"master_volume"`
	Metadata     map[string]string `yaml:"metadata,omitempty"`
	Tracks       []TrackDoc        `yaml:"tracks"`
}

// FormatDoc mirrors audioformat.Format.
type FormatDoc struct {
	SampleRateHz int    `yaml:"sample_rate_hz"`
	Channels     int    `yaml:"channels"`
	Layout       string `yaml:"layout"`
}

// TrackDoc mirrors track.Track's persisted fields.
type TrackDoc struct {
	Name     string       `yaml:"name"`
	Volume   float64      `yaml:"volume"`
	Pan      float64      `yaml:"pan"`
	IsMuted  bool         `yaml:"is_muted"`
	IsSoloed bool         `yaml:"is_soloed"`
	Segments []SegmentDoc `yaml:"segments"`
}

// SegmentDoc mirrors segment.Segment's persisted fields. ProviderID
// references the arena entry a loader must already have populated (§9
// design note (i)); the project file never embeds raw audio.
type SegmentDoc struct {
	ProviderID            string   `yaml:"provider_id"`
	OwnsProvider          bool     `yaml:"owns_provider"`
	SourceStartTime       float64  `yaml:"source_start_time"`
	SourceDuration        float64  `yaml:"source_duration"`
	TimelineStartTime     float64  `yaml:"timeline_start_time"`
	Volume                float64  `yaml:"volume"`
	Pan                   float64  `yaml:"pan"`
	IsReversed            bool     `yaml:"is_reversed"`
	SpeedFactor           float64  `yaml:"speed_factor"`
	TimeStretchFactor     float64  `yaml:"time_stretch_factor"`
	TargetStretchDuration *float64 `yaml:"target_stretch_duration,omitempty"`
	FadeInDuration        float64  `yaml:"fade_in_duration"`
	FadeInCurve           string   `yaml:"fade_in_curve"`
	FadeOutDuration       float64  `yaml:"fade_out_duration"`
	FadeOutCurve          string   `yaml:"fade_out_curve"`
	LoopRepetitions       int      `yaml:"loop_repetitions"`
	LoopTargetDuration    *float64 `yaml:"loop_target_duration,omitempty"`
}

// ToDocument snapshots comp into a serializable Document.
func ToDocument(comp *composition.Composition) Document {
	doc := Document{
		Format: FormatDoc{
			SampleRateHz: comp.Format.SampleRateHz,
			Channels:     comp.Format.Channels,
			Layout:       string(comp.Format.Layout),
		},
		MasterVolume: comp.MasterVolume,
		Metadata:     comp.Metadata,
	}
	for _, t := range comp.Tracks() {
		doc.Tracks = append(doc.Tracks, trackToDoc(t))
	}
	return doc
}

func trackToDoc(t *track.Track) TrackDoc {
	td := TrackDoc{
		Name:     t.Name,
		Volume:   t.Settings.Volume,
		Pan:      t.Settings.Pan,
		IsMuted:  t.Settings.IsMuted,
		IsSoloed: t.Settings.IsSoloed,
	}
	for _, seg := range t.Segments() {
		td.Segments = append(td.Segments, segmentToDoc(seg))
	}
	return td
}

func segmentToDoc(seg *segment.Segment) SegmentDoc {
	s := seg.Settings
	return SegmentDoc{
		ProviderID:            seg.ProviderID().String(),
		OwnsProvider:          seg.OwnsProvider(),
		SourceStartTime:       seg.SourceStartTime,
		SourceDuration:        seg.SourceDuration,
		TimelineStartTime:     seg.TimelineStartTime,
		Volume:                s.Volume,
		Pan:                   s.Pan,
		IsReversed:            s.IsReversed,
		SpeedFactor:           s.SpeedFactor,
		TimeStretchFactor:     s.TimeStretchFactor,
		TargetStretchDuration: s.TargetStretchDuration,
		FadeInDuration:        s.FadeInDuration,
		FadeInCurve:           fadeCurveName(s.FadeInCurve),
		FadeOutDuration:       s.FadeOutDuration,
		FadeOutCurve:          fadeCurveName(s.FadeOutCurve),
		LoopRepetitions:       s.Loop.Repetitions,
		LoopTargetDuration:    s.Loop.TargetDuration,
	}
}

// FromDocument reconstructs a Composition from doc. arena must already
// contain a Provider registered under every SegmentDoc.ProviderID this
// document references — project files describe structure, not audio
// data, so loading one never allocates a decoder on its own.
func FromDocument(doc Document, arena *provider.Arena) (*composition.Composition, error) {
	format, err := audioformat.New(doc.Format.SampleRateHz, doc.Format.Channels, audioformat.Layout(doc.Format.Layout))
	if err != nil {
		return nil, err
	}

	comp := composition.New(format)
	comp.MasterVolume = doc.MasterVolume
	comp.Metadata = doc.Metadata

	for _, td := range doc.Tracks {
		t := track.New(td.Name)
		t.Settings = track.Settings{
			Volume:   td.Volume,
			Pan:      td.Pan,
			IsMuted:  td.IsMuted,
			IsSoloed: td.IsSoloed,
		}
		for _, sd := range td.Segments {
			seg, err := segmentFromDoc(sd, arena)
			if err != nil {
				return nil, err
			}
			t.AddSegment(seg)
		}
		comp.AddTrack(t)
	}
	return comp, nil
}

func segmentFromDoc(sd SegmentDoc, arena *provider.Arena) (*segment.Segment, error) {
	id, err := provider.ParseID(sd.ProviderID)
	if err != nil {
		return nil, err
	}
	fadeIn, err := parseFadeCurve(sd.FadeInCurve)
	if err != nil {
		return nil, err
	}
	fadeOut, err := parseFadeCurve(sd.FadeOutCurve)
	if err != nil {
		return nil, err
	}
	settings := segment.Settings{
		Volume:                sd.Volume,
		Pan:                   sd.Pan,
		IsReversed:            sd.IsReversed,
		SpeedFactor:           sd.SpeedFactor,
		TimeStretchFactor:     sd.TimeStretchFactor,
		TargetStretchDuration: sd.TargetStretchDuration,
		FadeInDuration:        sd.FadeInDuration,
		FadeInCurve:           fadeIn,
		FadeOutDuration:       sd.FadeOutDuration,
		FadeOutCurve:          fadeOut,
		Loop: segment.LoopSettings{
			Repetitions:    sd.LoopRepetitions,
			TargetDuration: sd.LoopTargetDuration,
		},
	}
	return segment.New(arena, id, sd.OwnsProvider, sd.SourceStartTime, sd.SourceDuration, sd.TimelineStartTime, settings)
}

// Save writes comp's structural snapshot to path as YAML.
func Save(comp *composition.Composition, path string) error {
	data, err := yaml.Marshal(ToDocument(comp))
	if err != nil {
		return engineerr.New(err).Component("project").Kind(engineerr.KindIO).Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return engineerr.New(err).Component("project").Kind(engineerr.KindIO).Build()
	}
	comp.ClearDirty()
	return nil
}

// Load reads a project YAML file at path and reconstructs a Composition,
// resolving provider references against arena.
func Load(path string, arena *provider.Arena) (*composition.Composition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engineerr.New(err).Component("project").Kind(engineerr.KindIO).Build()
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, engineerr.New(err).Component("project").Kind(engineerr.KindCorruptChunk).Build()
	}
	return FromDocument(doc, arena)
}

func fadeCurveName(c dsp.FadeCurve) string {
	switch c {
	case dsp.FadeLinear:
		return "linear"
	case dsp.FadeLogarithmic:
		return "logarithmic"
	case dsp.FadeSCurve:
		return "s_curve"
	default:
		return "linear"
	}
}

func parseFadeCurve(name string) (dsp.FadeCurve, error) {
	switch name {
	case "", "linear":
		return dsp.FadeLinear, nil
	case "logarithmic":
		return dsp.FadeLogarithmic, nil
	case "s_curve":
		return dsp.FadeSCurve, nil
	default:
		return "", engineerr.Newf("unknown fade curve %q", name).
			Component("project").Kind(engineerr.KindValidation).Build()
	}
}
