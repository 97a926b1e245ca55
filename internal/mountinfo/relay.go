// Package mountinfo implements the one-shot relay of the current mount table
// into the kernel monitor's control device, gated by kernel version.
package mountinfo

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"anything/internal/logging"
)

// Outcome discriminates a single relay invocation. A relay is never retried
// automatically; callers decide whether to invoke again.
type Outcome int

const (
	// Success covers both a completed write and a skipped relay below the
	// version gate.
	Success Outcome = iota
	// VersionCheckFailed means the kernel release could not be read at all.
	VersionCheckFailed
	// UnrecognizedVersionFormat means the release string was not x.y.z.
	UnrecognizedVersionFormat
	// SourceOpenFailed means the mount table could not be read.
	SourceOpenFailed
	// SinkOpenFailed means the kernel device was absent or unwritable.
	SinkOpenFailed
	// WriteFailed means the write to the kernel device was short or errored.
	WriteFailed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case VersionCheckFailed:
		return "version_check_failed"
	case UnrecognizedVersionFormat:
		return "unrecognized_version_format"
	case SourceOpenFailed:
		return "source_open_failed"
	case SinkOpenFailed:
		return "sink_open_failed"
	case WriteFailed:
		return "write_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Relay copies the mount table from SourcePath into SinkPath when the running
// kernel is new enough to accept it. The sink is created by the kernel
// monitor and must already exist; it is opened write-only and never created
// here.
type Relay struct {
	SourcePath string
	SinkPath   string
	// Release overrides kernel release detection; nil uses uname(2).
	Release func() (string, error)

	logger *slog.Logger
}

// New builds a relay against the given paths.
func New(sourcePath, sinkPath string, logger *slog.Logger) *Relay {
	return &Relay{
		SourcePath: sourcePath,
		SinkPath:   sinkPath,
		logger:     logging.NewComponentLogger(logger, "mountinfo"),
	}
}

// Run performs one relay attempt and reports its outcome. Below the version
// gate no I/O happens and the outcome is Success.
func (r *Relay) Run() Outcome {
	release, err := r.release()
	if err != nil {
		r.logger.Warn("kernel release unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "mountinfo_version_check_failed"),
		)
		return VersionCheckFailed
	}
	r.logger.Debug("kernel release detected", logging.String("release", release))

	supported, ok := releaseSupportsRelay(release)
	if !ok {
		r.logger.Warn("unrecognized kernel release format, expect x.y.z",
			logging.String("release", release),
			logging.String(logging.FieldEventType, "mountinfo_version_unrecognized"),
		)
		return UnrecognizedVersionFormat
	}
	if !supported {
		r.logger.Debug("kernel below mount relay threshold, skipping",
			logging.String("release", release),
		)
		return Success
	}

	table, err := os.ReadFile(r.SourcePath)
	if err != nil {
		r.logger.Warn("read mount table failed",
			logging.Error(err),
			logging.String(logging.FieldPath, r.SourcePath),
			logging.String(logging.FieldEventType, "mountinfo_source_open_failed"),
		)
		return SourceOpenFailed
	}

	sink, err := os.OpenFile(r.SinkPath, os.O_WRONLY, 0)
	if err != nil {
		r.logger.Warn("open kernel device failed",
			logging.Error(err),
			logging.String(logging.FieldPath, r.SinkPath),
			logging.String(logging.FieldEventType, "mountinfo_sink_open_failed"),
			logging.String(logging.FieldErrorHint, "ensure the kernel monitor created the device"),
		)
		return SinkOpenFailed
	}
	defer sink.Close()

	n, err := sink.Write(table)
	if err != nil || n != len(table) {
		r.logger.Warn("write mount table failed",
			logging.Error(err),
			logging.String(logging.FieldPath, r.SinkPath),
			logging.String(logging.FieldEventType, "mountinfo_write_failed"),
		)
		return WriteFailed
	}

	r.logger.Info("mount table relayed to kernel monitor",
		logging.Int("bytes", n),
		logging.String(logging.FieldEventType, "mountinfo_relayed"),
	)
	return Success
}

func (r *Relay) release() (string, error) {
	if r.Release != nil {
		return r.Release()
	}
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}
	return unix.ByteSliceToString(uts.Release[:]), nil
}

// releaseSupportsRelay parses a kernel release string and reports whether the
// kernel accepts mount info (>= 5.10). The second return is false when the
// string has fewer than three dot-separated components.
func releaseSupportsRelay(release string) (supported, ok bool) {
	parts := strings.Split(release, ".")
	if len(parts) < 3 {
		return false, false
	}
	major := leadingInt(parts[0])
	minor := leadingInt(parts[1])
	return major > 5 || (major == 5 && minor >= 10), true
}

// leadingInt parses the leading decimal digits, ignoring trailing suffixes
// such as "0-amd64". A component without digits counts as zero.
func leadingInt(s string) int {
	value := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		value = value*10 + int(r-'0')
	}
	return value
}
