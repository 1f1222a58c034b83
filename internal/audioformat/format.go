// Package audioformat defines the immutable audio format shared by a
// composition and the player attached to it (§3).
package audioformat

import "github.com/LuoYun-Team/soundflow-engine/internal/engineerr"

// Layout names a conventional channel layout. Custom layouts are
// represented by CustomMask with an explicit channel count.
type Layout string

const (
	LayoutMono    Layout = "mono"
	LayoutStereo  Layout = "stereo"
	LayoutQuad    Layout = "quad"
	Layout51      Layout = "5.1"
	Layout71      Layout = "7.1"
	LayoutCustom  Layout = "custom-mask"
)

// MaxChannels bounds the channel count this spec supports.
const MaxChannels = 16

// Format is immutable once a component is constructed around it.
type Format struct {
	SampleRateHz int
	Channels     int
	Layout       Layout
}

// New validates and constructs a Format.
func New(sampleRateHz, channels int, layout Layout) (Format, error) {
	if sampleRateHz <= 0 {
		return Format{}, engineerr.Newf("sample rate must be positive, got %d", sampleRateHz).
			Component("audioformat").Kind(engineerr.KindValidation).
			Context("sample_rate_hz", sampleRateHz).Build()
	}
	if channels <= 0 || channels > MaxChannels {
		return Format{}, engineerr.Newf("channels must be in [1, %d], got %d", MaxChannels, channels).
			Component("audioformat").Kind(engineerr.KindValidation).
			Context("channels", channels).Build()
	}
	return Format{SampleRateHz: sampleRateHz, Channels: channels, Layout: layout}, nil
}

// FrameBytes returns the byte size of one interleaved frame for 32-bit float
// samples.
func (f Format) FrameBytes() int { return f.Channels * 4 }

// Equal reports whether two formats describe the same PCM layout.
func (f Format) Equal(o Format) bool {
	return f.SampleRateHz == o.SampleRateHz && f.Channels == o.Channels
}
