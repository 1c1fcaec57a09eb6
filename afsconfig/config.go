// Package afsconfig binds the AFS block's configuration knobs (spec
// §6's Configuration table) onto a flag.FlagSet, following the field-
// binding pattern used throughout the reference corpus's config/flag.go
// rather than that package's full multi-instance registry: the AFS
// block has exactly one fixed-shape configuration, so the lighter
// pattern is the right amount of machinery (see DESIGN.md).
package afsconfig

import (
	"flag"
	"fmt"

	"github.com/dbkernel/ndbfs/errors"
)

// PoolMode names either a dedicated worker goroutine per open file or
// a shared, bounded pool of unbound workers (spec §4.7). The block does
// not read it: every open runs on a dedicated bound worker whichever
// mode is set. Validate checks PoolSize when the mode is Pooled.
type PoolMode int

const (
	// Bound is one worker goroutine per open file.
	Bound PoolMode = iota
	// Pooled names a fixed-size shared worker set; it does not change
	// how opens are serviced.
	Pooled
)

// Config holds the AFS block's startup configuration, read once at
// block construction from the node's block-registry/config subsystem
// (external to this core, per spec §1).
type Config struct {
	// MaxNoOfOpenFiles bounds concurrent open files (spec §4.7, §7). An
	// open beyond it gets a NoMoreResources reply with Fatal severity;
	// the block itself does not stop the node.
	MaxNoOfOpenFiles int
	// InitialNoOfOpenFiles is the warm idle pool size at startup.
	InitialNoOfOpenFiles int

	// FileSystemPath, BackupFilePath, FileSystemPathDD,
	// FileSystemPathDataFiles and FileSystemPathUndoFiles populate the
	// Filename BasePath table (spec §3, §6).
	FileSystemPath          string
	BackupFilePath          string
	FileSystemPathDD        string
	FileSystemPathDataFiles string
	FileSystemPathUndoFiles string

	// NodeID names this node in rendered backup paths (v2 Filename specs).
	NodeID uint32

	// PoolMode is the configured worker mode. Opens are bound
	// regardless of it; see PoolMode.
	PoolMode PoolMode
	// PoolSize bounds how many pooled requests (AllocMem, BuildIndex,
	// Rmrf) run at once, in either mode. Outside Pooled mode a value
	// <= 0 is treated as 1.
	PoolSize int

	// AutoSyncFreqOverride, settable only via the dump handler at
	// runtime, overrides every open file's auto-sync frequency (spec
	// §9's "global mutable state", §12's supplemented dump features).
	// Zero means "no override; use each Open request's own value".
	AutoSyncFreqOverride uint32

	// UseODirect and UseOSync are dump-toggleable settings applied to
	// every subsequent open (spec §6's dump commands): UseOSync adds the
	// Sync flag to the open's own flags, and UseODirect sets Direct.
	UseODirect bool
	UseOSync   bool

	// UnlinkOnCreate, when toggled on via dump, removes any
	// pre-existing file at the target path before an Open{CREATE}
	// (spec §6's dump commands).
	UnlinkOnCreate bool
}

// Default returns a Config with the source's defaults (spec §4.7):
// MaxNoOfOpenFiles 40, InitialNoOfOpenFiles 27.
func Default() Config {
	return Config{
		MaxNoOfOpenFiles:     40,
		InitialNoOfOpenFiles: 27,
		FileSystemPath:       ".",
		PoolMode:             Bound,
		PoolSize:             4,
	}
}

// RegisterFlags binds c's fields onto fs, following the corpus's
// style of one flag per configuration field with an inline default
// and usage string.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.MaxNoOfOpenFiles, "max-open-files", c.MaxNoOfOpenFiles,
		"maximum number of concurrently open files; further opens fail with a fatal error")
	fs.IntVar(&c.InitialNoOfOpenFiles, "initial-open-files", c.InitialNoOfOpenFiles,
		"number of AsyncFile workers to pre-warm into the idle pool at startup")
	fs.StringVar(&c.FileSystemPath, "filesystem-path", c.FileSystemPath,
		"root directory for table and fragment data files")
	fs.StringVar(&c.BackupFilePath, "backup-path", c.BackupFilePath,
		"root directory for backup files")
	fs.StringVar(&c.FileSystemPathDD, "filesystem-path-dd", c.FileSystemPathDD,
		"root directory for disk-data control files")
	fs.StringVar(&c.FileSystemPathDataFiles, "filesystem-path-datafiles", c.FileSystemPathDataFiles,
		"root directory for disk-data data files")
	fs.StringVar(&c.FileSystemPathUndoFiles, "filesystem-path-undofiles", c.FileSystemPathUndoFiles,
		"root directory for disk-data undo files")
	fs.Func("node-id", "this node's id, used in rendered backup paths", func(s string) error {
		var v uint64
		if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
			return err
		}
		c.NodeID = uint32(v)
		return nil
	})
	fs.IntVar(&c.PoolSize, "pool-size", c.PoolSize,
		"worker concurrency bound in pooled (unbound-worker) mode")
}

// Validate checks the invariants the block relies on: a non-empty
// default root, and an idle pool no larger than the open-file ceiling
// (spec §4.7).
func (c Config) Validate() error {
	if c.FileSystemPath == "" {
		return errors.E(errors.InvalidParameters, "afsconfig: FileSystemPath must be set")
	}
	if c.MaxNoOfOpenFiles <= 0 {
		return errors.E(errors.InvalidParameters, "afsconfig: MaxNoOfOpenFiles must be positive")
	}
	if c.InitialNoOfOpenFiles > c.MaxNoOfOpenFiles {
		return errors.E(errors.InvalidParameters, "afsconfig: InitialNoOfOpenFiles exceeds MaxNoOfOpenFiles")
	}
	if c.PoolMode == Pooled && c.PoolSize <= 0 {
		return errors.E(errors.InvalidParameters, "afsconfig: PoolSize must be positive in Pooled mode")
	}
	return nil
}
