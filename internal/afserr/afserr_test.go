package afserr_test

import (
	"fmt"
	"io"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbkernel/ndbfs/errors"
	"github.com/dbkernel/ndbfs/internal/afserr"
)

func TestTranslateMapsKnownErrno(t *testing.T) {
	_, err := os.Open("/definitely/does/not/exist/ndbfs")
	translated, osCode := afserr.Translate(err)
	require.NotNil(t, translated)
	assert.Equal(t, errors.FileDoesNotExist, translated.Kind)
	assert.Equal(t, uint32(syscall.ENOENT), osCode)
}

func TestTranslateUnknownErrnoFallsBackToOther(t *testing.T) {
	translated, osCode := afserr.Translate(syscall.Errno(0x7fffffff))
	assert.Equal(t, errors.Other, translated.Kind)
	assert.NotEqual(t, ^uint32(0), osCode)
}

func TestTranslateEOFIsReadUnderflow(t *testing.T) {
	translated, osCode := afserr.Translate(io.EOF)
	assert.Equal(t, errors.ReadUnderflow, translated.Kind)
	assert.Equal(t, ^uint32(0), osCode)
}

func TestTranslatePassesThroughAlreadyClassifiedErrors(t *testing.T) {
	original := errors.E(errors.ReadUnderflow, "short read before completion").(*errors.Error)
	translated, osCode := afserr.Translate(original)
	assert.Same(t, original, translated)
	assert.Equal(t, ^uint32(0), osCode)
}

func TestLocalUsesSentinelOSCode(t *testing.T) {
	translated, osCode := afserr.Local(errors.InvalidParameters, "bad filename spec")
	assert.Equal(t, errors.InvalidParameters, translated.Kind)
	assert.Equal(t, ^uint32(0), osCode)
	assert.Equal(t, "bad filename spec: invalid parameters", fmt.Sprint(translated))
}
