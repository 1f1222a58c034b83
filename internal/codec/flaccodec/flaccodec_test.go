package flaccodec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode_RejectsNonFLACInput(t *testing.T) {
	_, _, err := Decode(strings.NewReader("not a flac stream"))
	assert.Error(t, err)
}

func TestDecode_RejectsEmptyInput(t *testing.T) {
	_, _, err := Decode(strings.NewReader(""))
	assert.Error(t, err)
}
