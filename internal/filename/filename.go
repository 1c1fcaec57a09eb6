// Package filename implements the Filename state machine: a
// deterministic mapping from a LogicalFileSpec (a versioned,
// field-based description of a table, fragment, LCP, or backup file)
// to an absolute filesystem path (spec §3, §4.2).
package filename

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/dbkernel/ndbfs/errors"
)

// NoValue is the sentinel for an omitted numeric field. Path segments
// keyed on a field holding NoValue are elided from the rendered path.
const NoValue = ^uint32(0)

// PathMax bounds the rendered path length, matching the common POSIX
// PATH_MAX. Paths that would exceed it are rejected.
const PathMax = 4096

// Version selects one of the six field layouts a LogicalFileSpec can
// carry.
type Version int

const (
	V1 Version = iota + 1
	V2
	V3
	V4
	V5
	V6
)

// BasePath names one of the small fixed set of configured root
// directories a spec can be resolved against.
type BasePath int

const (
	// FileSystem is the default root, and the fallback for any unset
	// selector.
	FileSystem BasePath = iota
	Backup
	DataFiles
	UndoFiles
)

// Table is the configured set of base paths. A zero-value entry is
// "unset" and falls back to FileSystem at lookup, per spec §3.
type Table struct {
	FileSystem string
	Backup     string
	DataFiles  string
	UndoFiles  string
}

// Resolve returns the configured path for sel, falling back to
// FileSystem when sel is unset.
func (t Table) Resolve(sel BasePath) string {
	var p string
	switch sel {
	case Backup:
		p = t.Backup
	case DataFiles:
		p = t.DataFiles
	case UndoFiles:
		p = t.UndoFiles
	default:
		p = t.FileSystem
	}
	if p == "" {
		p = t.FileSystem
	}
	return p
}

// Suffix is the file extension code, per the closed set in spec §6.
type Suffix int

const (
	NoSuffix Suffix = iota
	Data
	FragLog
	LocLog
	FragList
	TableList
	SchemaLog
	Sysfile
	Log
	Ctl
)

var suffixText = map[Suffix]string{
	NoSuffix:  "",
	Data:      ".Data",
	FragLog:   ".FragLog",
	LocLog:    ".LocLog",
	FragList:  ".FragList",
	TableList: ".TableList",
	SchemaLog: ".SchemaLog",
	Sysfile:   ".sysfile",
	Log:       ".log",
	Ctl:       ".ctl",
}

func (s Suffix) String() (string, error) {
	text, ok := suffixText[s]
	if !ok {
		return "", errors.E(errors.InvalidParameters, "unknown suffix code").(*errors.Error)
	}
	return text, nil
}

// Spec is the open-request key: a version tag plus the fields that
// version interprets. Fields not used by Version are ignored.
type Spec struct {
	Version Version
	Base    BasePath

	// v1: disk/table/fragment/stream/part naming under a named block.
	DiskNo    uint32 // NoValue omits the D<n> component; 0xFF is also treated as omitted (see Open Question in spec §9).
	Block     string // e.g. "DBTUP"; empty omits the component.
	Table     uint32
	Fragment  uint32
	S         uint32
	P         uint32
	Suffix    Suffix

	// v2: backup naming.
	Sequence   uint32
	NodeID     uint32
	PartNum    uint32 // NoValue (or TotalParts == NoValue) omits the PART-<p>-OF-<tp> segment.
	TotalParts uint32
	Count      uint32 // NoValue omits the -<count> suffix.

	// v3: single-disk control files. DiskNo == 0xFF is an error (unlike v1).

	// v4: arbitrary caller string, verbatim if absolute.
	UserPath string

	// v5: LCP naming.
	TableID uint32
	LCPNo   uint32
	FragID  uint32
}

// Options carries the per-call parameters outside the spec itself.
type Options struct {
	// IsDirectory, if true, truncates the rendered path after the last
	// separator, yielding the containing directory rather than a leaf
	// file. Used by directory-mode Rmrf.
	IsDirectory bool
}

// Result is the rendered path plus the offset of its final path
// component, retained for building readable error and dump messages
// without re-parsing the path.
type Result struct {
	Path           string
	BaseNameOffset int
}

// Separator is the platform path separator. The source renders POSIX
// paths with '/' throughout and only special-cases the v4 caller
// string for Windows; this mirrors that asymmetry rather than
// unifying on filepath.Join, so rendered non-v4 paths are stable
// across platforms for testing.
const Separator = "/"

// Render computes the absolute path for spec, or an InvalidParameters
// *errors.Error classified as in spec §4.2 ("all fatal at the call
// site: they indicate a programming error in the caller, not a
// runtime I/O failure").
func Render(spec Spec, base Table, opts Options) (Result, error) {
	root := base.Resolve(spec.Base)
	var b strings.Builder
	b.WriteString(root)

	switch spec.Version {
	case V1:
		if err := renderV1(&b, spec); err != nil {
			return Result{}, err
		}
	case V2:
		renderV2(&b, spec)
	case V3:
		if spec.DiskNo == 0xFF {
			return Result{}, invalid("v3: disk number 0xFF is not a valid disk spec")
		}
		ext, err := spec.Suffix.String()
		if err != nil {
			return Result{}, err
		}
		fmt.Fprintf(&b, "/D%d%s", spec.DiskNo, ext)
	case V4:
		return renderV4(spec, root, opts)
	case V5:
		ext, err := spec.Suffix.String()
		if err != nil {
			return Result{}, err
		}
		fmt.Fprintf(&b, "/LCP/%d/T%dF%d%s", spec.LCPNo, spec.TableID, spec.FragID, ext)
	case V6:
		b.WriteString(Separator)
		return finish(b.String(), opts)
	default:
		return Result{}, invalid("unknown LogicalFileSpec version")
	}
	return finish(b.String(), opts)
}

func renderV1(b *strings.Builder, spec Spec) error {
	if spec.DiskNo != NoValue && spec.DiskNo != 0xFF {
		fmt.Fprintf(b, "/D%d", spec.DiskNo)
	}
	if spec.Block != "" {
		b.WriteString("/")
		b.WriteString(spec.Block)
	}
	if spec.Table != NoValue {
		fmt.Fprintf(b, "/T%d", spec.Table)
	}
	if spec.Fragment != NoValue {
		fmt.Fprintf(b, "/F%d", spec.Fragment)
	}
	ext, err := spec.Suffix.String()
	if err != nil {
		return err
	}
	fmt.Fprintf(b, "/S%dP%d%s", spec.S, spec.P, ext)
	return nil
}

func renderV2(b *strings.Builder, spec Spec) {
	fmt.Fprintf(b, "/BACKUP/BACKUP-%d", spec.Sequence)
	if spec.PartNum != NoValue && spec.TotalParts != NoValue {
		fmt.Fprintf(b, "/BACKUP-%d-PART-%d-OF-%d", spec.Sequence, spec.PartNum, spec.TotalParts)
	}
	fmt.Fprintf(b, "/BACKUP-%d", spec.Sequence)
	if spec.Count != NoValue {
		fmt.Fprintf(b, "-%d", spec.Count)
	}
	fmt.Fprintf(b, ".%d", spec.NodeID)
}

func renderV4(spec Spec, root string, opts Options) (Result, error) {
	if spec.UserPath == "" {
		return Result{}, invalid("v4: empty path string")
	}
	if strings.IndexByte(spec.UserPath, 0) >= 0 {
		return Result{}, invalid("v4: path string contains an embedded NUL")
	}
	p := spec.UserPath
	if runtime.GOOS == "windows" {
		p = strings.ReplaceAll(p, "/", `\`)
	}
	var full string
	if isAbsolute(p) {
		full = p
	} else {
		full = root + Separator + p
	}
	return finish(full, opts)
}

func isAbsolute(p string) bool {
	if strings.HasPrefix(p, "/") {
		return true
	}
	if runtime.GOOS == "windows" && len(p) >= 3 && p[1] == ':' && (p[2] == '\\' || p[2] == '/') {
		return true
	}
	return false
}

func finish(p string, opts Options) (Result, error) {
	if len(p) > PathMax {
		return Result{}, invalid("rendered path exceeds PATH_MAX")
	}
	if opts.IsDirectory {
		if idx := strings.LastIndex(p, Separator); idx >= 0 {
			p = p[:idx]
		}
	}
	offset := strings.LastIndex(p, Separator) + 1
	return Result{Path: p, BaseNameOffset: offset}, nil
}

func invalid(msg string) error {
	return errors.E(errors.InvalidParameters, msg)
}

// Components returns the path segments strictly between root and the
// containing directory of path, in order from shallowest to deepest.
// AsyncFile.createDirectories walks these, issuing mkdir on each
// (spec §4.3); pre-existing directories are not errors, so the caller
// is expected to tolerate EEXIST.
func Components(root, path string) []string {
	dir := path
	if idx := strings.LastIndex(path, Separator); idx >= 0 {
		dir = path[:idx]
	}
	if !strings.HasPrefix(dir, root) {
		return nil
	}
	rest := strings.Trim(strings.TrimPrefix(dir, root), Separator)
	if rest == "" {
		return nil
	}
	parts := strings.Split(rest, Separator)
	segs := make([]string, 0, len(parts))
	cur := strings.TrimSuffix(root, Separator)
	for _, part := range parts {
		cur = cur + Separator + part
		segs = append(segs, cur)
	}
	return segs
}
