package project

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuoYun-Team/soundflow-engine/internal/audioformat"
	"github.com/LuoYun-Team/soundflow-engine/internal/composition"
	"github.com/LuoYun-Team/soundflow-engine/internal/provider"
	"github.com/LuoYun-Team/soundflow-engine/internal/segment"
	"github.com/LuoYun-Team/soundflow-engine/internal/track"
)

func buildComposition(t *testing.T, arena *provider.Arena) *composition.Composition {
	t.Helper()
	format, err := audioformat.New(48000, 1, audioformat.LayoutMono)
	require.NoError(t, err)

	comp := composition.New(format)
	comp.MasterVolume = 0.8
	comp.Metadata = map[string]string{"title": "test project"}

	tr := track.New("lead")
	tr.Settings.Volume = 0.9
	tr.Settings.IsMuted = true

	id := arena.Register(provider.NewMemoryProvider(make([]float32, 48000), 48000, 1), true)
	seg, err := segment.New(arena, id, true, 0, 1, 0, segment.DefaultSettings())
	require.NoError(t, err)
	tr.AddSegment(seg)
	comp.AddTrack(tr)
	return comp
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	arena := provider.NewArena()
	comp := buildComposition(t, arena)

	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, Save(comp, path))
	assert.False(t, comp.IsDirty())

	loaded, err := Load(path, arena)
	require.NoError(t, err)

	assert.Equal(t, comp.Format, loaded.Format)
	assert.InDelta(t, 0.8, loaded.MasterVolume, 1e-9)
	assert.Equal(t, "test project", loaded.Metadata["title"])

	tracks := loaded.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, "lead", tracks[0].Name)
	assert.True(t, tracks[0].Settings.IsMuted)

	segs := tracks[0].Segments()
	require.Len(t, segs, 1)
	assert.InDelta(t, 1.0, segs[0].SourceDuration, 1e-9)
}

func TestFromDocument_RejectsUnknownProviderID(t *testing.T) {
	arena := provider.NewArena()
	doc := Document{
		Format: FormatDoc{SampleRateHz: 48000, Channels: 1, Layout: "mono"},
		Tracks: []TrackDoc{{
			Name: "t",
			Segments: []SegmentDoc{{
				ProviderID:     "00000000-0000-0000-0000-000000000000",
				SourceDuration: 1,
			}},
		}},
	}
	_, err := FromDocument(doc, arena)
	assert.Error(t, err)
}
