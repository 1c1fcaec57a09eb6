package errors_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbkernel/ndbfs/errors"
)

func TestErrorKindAndMessage(t *testing.T) {
	_, openErr := os.Open("/no/such/path/at/all")
	err := errors.E(errors.FileDoesNotExist, "opening control file", openErr)
	require.Error(t, err)
	e, ok := err.(*errors.Error)
	require.True(t, ok)
	assert.Equal(t, errors.FileDoesNotExist, e.Kind)
	assert.Contains(t, e.Error(), "opening control file")
	assert.Contains(t, e.Error(), "file does not exist")
}

func TestErrorChainingPropagatesInnermostClassification(t *testing.T) {
	inner := errors.E(errors.NoMoreResources, "open file limit reached")
	outer := errors.E("afs: open failed", inner)
	e, ok := outer.(*errors.Error)
	require.True(t, ok)
	assert.Equal(t, errors.NoMoreResources, e.Kind)
	assert.Contains(t, e.Error(), "open file limit reached")
}

func TestSeverityFatalHelper(t *testing.T) {
	fatal := errors.E(errors.Fatal, "openfiles: duplicate path already open")
	assert.True(t, errors.IsFatal(fatal))

	retriable := errors.E(errors.Retriable, "temporarily unavailable")
	assert.False(t, errors.IsFatal(retriable))
}

func TestErrorIsMatchesStandardSentinels(t *testing.T) {
	err := errors.E(errors.FileDoesNotExist, "gone")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRecoverWrapsPlainErrors(t *testing.T) {
	wrapped := errors.Recover(os.ErrPermission)
	require.NotNil(t, wrapped)
	assert.Equal(t, errors.PermissionDenied, wrapped.Kind)

	already := errors.E(errors.Timeout, "deadline exceeded").(*errors.Error)
	assert.Same(t, already, errors.Recover(already))
}
