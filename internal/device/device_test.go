package device

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tphakala/malgo"
)

func TestBackendForPlatform_MatchesGOOS(t *testing.T) {
	backend, err := backendForPlatform()
	switch runtime.GOOS {
	case "linux", "windows", "darwin":
		assert.NoError(t, err)
		assert.NotEqual(t, malgo.BackendNull, backend)
	default:
		assert.Error(t, err)
	}
}

func TestResolveBackend_KnownNames(t *testing.T) {
	for _, name := range []string{"alsa", "wasapi", "coreaudio"} {
		_, err := resolveBackend(name)
		assert.NoError(t, err)
	}
}

func TestResolveBackend_RejectsUnknownName(t *testing.T) {
	_, err := resolveBackend("not-a-real-backend")
	assert.Error(t, err)
}

func TestSelectDevice_EmptyListErrors(t *testing.T) {
	_, err := selectDevice(nil, "default")
	assert.Error(t, err)
}

func TestSelectDevice_FallsBackToDefaultFlag(t *testing.T) {
	infos := []malgo.DeviceInfo{{IsDefault: 0}, {IsDefault: 1}}
	got, err := selectDevice(infos, "default")
	assert.NoError(t, err)
	assert.EqualValues(t, 1, got.IsDefault)
}
