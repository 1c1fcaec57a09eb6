package afsconfig_test

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbkernel/ndbfs/afsconfig"
)

func TestDefaultIsValid(t *testing.T) {
	c := afsconfig.Default()
	assert.Equal(t, 40, c.MaxNoOfOpenFiles)
	assert.Equal(t, 27, c.InitialNoOfOpenFiles)
	require.NoError(t, c.Validate())
}

func TestValidateRejectsEmptyFileSystemPath(t *testing.T) {
	c := afsconfig.Default()
	c.FileSystemPath = ""
	assert.Error(t, c.Validate())
}

func TestValidateRejectsNonPositiveMaxOpenFiles(t *testing.T) {
	c := afsconfig.Default()
	c.MaxNoOfOpenFiles = 0
	assert.Error(t, c.Validate())
}

func TestValidateRejectsInitialExceedingMax(t *testing.T) {
	c := afsconfig.Default()
	c.InitialNoOfOpenFiles = c.MaxNoOfOpenFiles + 1
	assert.Error(t, c.Validate())
}

func TestValidateRequiresPositivePoolSizeInPooledMode(t *testing.T) {
	c := afsconfig.Default()
	c.PoolMode = afsconfig.Pooled
	c.PoolSize = 0
	assert.Error(t, c.Validate())

	c.PoolSize = 4
	assert.NoError(t, c.Validate())
}

func TestRegisterFlagsBindsFieldsToFlagSet(t *testing.T) {
	c := afsconfig.Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	err := fs.Parse([]string{
		"-max-open-files=100",
		"-filesystem-path=/var/lib/ndbfs",
		"-node-id=7",
		"-pool-size=8",
	})
	require.NoError(t, err)

	assert.Equal(t, 100, c.MaxNoOfOpenFiles)
	assert.Equal(t, "/var/lib/ndbfs", c.FileSystemPath)
	assert.Equal(t, uint32(7), c.NodeID)
	assert.Equal(t, 8, c.PoolSize)
}

func TestRegisterFlagsRejectsMalformedNodeID(t *testing.T) {
	c := afsconfig.Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	err := fs.Parse([]string{"-node-id=not-a-number"})
	assert.Error(t, err)
}
