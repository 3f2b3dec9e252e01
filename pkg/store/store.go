package store

import "context"

// Store abstracts artifact persistence for a single run directory (or, for
// non-filesystem backends, the equivalent logical namespace). Implementations
// must be safe for concurrent readers; writers are serialized by the Recorder,
// never by the Store itself.
type Store interface {
	// Create establishes the run's storage, writes initial metadata, and
	// creates empty snapshot/diff/tool-I/O subdirectories.
	Create(ctx context.Context, runDir string, meta Meta) error

	// AppendStep atomically appends one step record. One record is one
	// newline-terminated line, written with a single flush.
	AppendStep(ctx context.Context, runDir string, step Step) error

	// WriteSnapshot writes a single-file snapshot for stepID.
	WriteSnapshot(ctx context.Context, runDir string, stepID int, snap Snapshot) error

	// WriteDiff writes a single-file diff for stepID.
	WriteDiff(ctx context.Context, runDir string, stepID int, diff Diff) error

	// CaptureToolIO appends captured bytes to the named stream of stepID.
	CaptureToolIO(ctx context.Context, runDir string, stepID int, stream Stream, data []byte) error

	// Seal rewrites metadata with terminal fields. No further writes are
	// permitted against runDir after Seal returns successfully.
	Seal(ctx context.Context, runDir string, status RunStatus, reason string, truncated bool) error

	// Load parses metadata and the step log. Snapshots, diffs, and tool I/O
	// are not loaded eagerly; use LoadSnapshot / LoadDiff / LoadToolIO.
	Load(ctx context.Context, runDir string) (*Run, error)

	// LoadSnapshot loads the snapshot for stepID, if it exists.
	LoadSnapshot(ctx context.Context, runDir string, stepID int) (*Snapshot, error)

	// LoadDiff loads the diff for stepID, if it exists.
	LoadDiff(ctx context.Context, runDir string, stepID int) (*Diff, error)

	// LoadToolIO loads a captured I/O stream for stepID, if it exists.
	LoadToolIO(ctx context.Context, runDir string, stepID int, stream Stream) ([]byte, error)
}
