// Package firestore implements store.Store backed by Google Cloud
// Firestore, for deployments that centralize traces away from local disk
// (SPEC_FULL.md §4.1) — e.g. a fleet of short-lived CI workers, each
// writing from an ephemeral container with no shared volume. It persists
// the same logical documents the filesystem backend writes as files: run
// metadata, step records, snapshots, diffs, and tool-I/O blobs, under a
// runs/<run_id> collection hierarchy. It defers durability to Firestore's
// own write acknowledgement instead of an OS-level flush; every other
// invariant in SPEC_FULL.md is the filesystem backend's to define, and this
// backend satisfies the same append-only / seal-once contract.
package firestore

import (
	"context"
	"fmt"
	"strconv"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tracecore/tracecore/pkg/store"
)

const (
	runsCollection  = "runs"
	stepsSub        = "steps"
	snapshotsSub    = "snapshots"
	diffsSub        = "diffs"
	toolIOSub       = "tool_io"
)

// Config configures a Store, mirroring pkg/vectorstore/firestore's
// functional-options shape.
type Config struct {
	ProjectID       string
	CredentialsFile string
}

// Option configures a Store.
type Option func(*Config)

// WithProjectID sets the GCP project ID (required).
func WithProjectID(projectID string) Option {
	return func(c *Config) { c.ProjectID = projectID }
}

// WithCredentialsFile uses a service account credentials file instead of
// Application Default Credentials.
func WithCredentialsFile(path string) Option {
	return func(c *Config) { c.CredentialsFile = path }
}

// Store implements store.Store against Firestore.
type Store struct {
	client *firestore.Client
}

var _ store.Store = (*Store)(nil)

// New builds a Store. ctx is used only for establishing the client
// connection, not retained.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore: project ID is required")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: new client: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying Firestore client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) runDoc(runDir string) *firestore.DocumentRef {
	return s.client.Collection(runsCollection).Doc(runDir)
}

func (s *Store) Create(ctx context.Context, runDir string, meta store.Meta) error {
	_, err := s.runDoc(runDir).Create(ctx, meta)
	if err != nil {
		return store.NewIoError("create", err)
	}
	return nil
}

func (s *Store) AppendStep(ctx context.Context, runDir string, step store.Step) error {
	sealed, err := s.isSealed(ctx, runDir)
	if err != nil {
		return err
	}
	if sealed {
		return store.ErrSealed
	}
	_, err = s.runDoc(runDir).Collection(stepsSub).Doc(strconv.Itoa(step.StepID)).Set(ctx, step)
	if err != nil {
		return store.NewIoError("append_step", err)
	}
	return nil
}

func (s *Store) WriteSnapshot(ctx context.Context, runDir string, stepID int, snap store.Snapshot) error {
	_, err := s.runDoc(runDir).Collection(snapshotsSub).Doc(strconv.Itoa(stepID)).Set(ctx, snap)
	if err != nil {
		return store.NewIoError("write_snapshot", err)
	}
	return nil
}

func (s *Store) WriteDiff(ctx context.Context, runDir string, stepID int, diff store.Diff) error {
	_, err := s.runDoc(runDir).Collection(diffsSub).Doc(strconv.Itoa(stepID)).Set(ctx, diff)
	if err != nil {
		return store.NewIoError("write_diff", err)
	}
	return nil
}

func (s *Store) CaptureToolIO(ctx context.Context, runDir string, stepID int, stream store.Stream, data []byte) error {
	docID := fmt.Sprintf("%d_%s", stepID, stream)
	doc := s.runDoc(runDir).Collection(toolIOSub).Doc(docID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		existing := []byte(nil)
		if err == nil {
			var rec toolIORecord
			if derr := snap.DataTo(&rec); derr == nil {
				existing = rec.Data
			}
		} else if status := firestoreNotFound(err); !status {
			return err
		}
		return tx.Set(doc, toolIORecord{Data: append(existing, data...)})
	})
	if err != nil {
		return store.NewIoError("capture_tool_io", err)
	}
	return nil
}

type toolIORecord struct {
	Data []byte `firestore:"data"`
}

func (s *Store) Seal(ctx context.Context, runDir string, status store.RunStatus, reason string, truncated bool) error {
	_, err := s.runDoc(runDir).Update(ctx, []firestore.Update{
		{Path: "Status", Value: status},
		{Path: "TerminationReason", Value: reason},
		{Path: "Truncated", Value: truncated},
	})
	if err != nil {
		return store.NewIoError("seal", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, runDir string) (*store.Run, error) {
	snap, err := s.runDoc(runDir).Get(ctx)
	if err != nil {
		return nil, invalidArtifact("load_meta", err)
	}
	var meta store.Meta
	if err := snap.DataTo(&meta); err != nil {
		return nil, invalidArtifact("load_meta", err)
	}

	iter := s.runDoc(runDir).Collection(stepsSub).Documents(ctx)
	var steps []store.Step
	partial := false
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			partial = true
			break
		}
		var step store.Step
		if err := doc.DataTo(&step); err != nil {
			partial = true
			continue
		}
		steps = append(steps, step)
	}

	return &store.Run{Dir: runDir, Meta: meta, Steps: steps, Partial: partial}, nil
}

func (s *Store) LoadSnapshot(ctx context.Context, runDir string, stepID int) (*store.Snapshot, error) {
	doc, err := s.runDoc(runDir).Collection(snapshotsSub).Doc(strconv.Itoa(stepID)).Get(ctx)
	if err != nil {
		return nil, invalidArtifact("load_snapshot", err)
	}
	var snap store.Snapshot
	if err := doc.DataTo(&snap); err != nil {
		return nil, invalidArtifact("load_snapshot", err)
	}
	return &snap, nil
}

func (s *Store) LoadDiff(ctx context.Context, runDir string, stepID int) (*store.Diff, error) {
	doc, err := s.runDoc(runDir).Collection(diffsSub).Doc(strconv.Itoa(stepID)).Get(ctx)
	if err != nil {
		return nil, invalidArtifact("load_diff", err)
	}
	var diff store.Diff
	if err := doc.DataTo(&diff); err != nil {
		return nil, invalidArtifact("load_diff", err)
	}
	return &diff, nil
}

func (s *Store) LoadToolIO(ctx context.Context, runDir string, stepID int, stream store.Stream) ([]byte, error) {
	docID := fmt.Sprintf("%d_%s", stepID, stream)
	doc, err := s.runDoc(runDir).Collection(toolIOSub).Doc(docID).Get(ctx)
	if err != nil {
		return nil, invalidArtifact("load_tool_io", err)
	}
	var rec toolIORecord
	if err := doc.DataTo(&rec); err != nil {
		return nil, invalidArtifact("load_tool_io", err)
	}
	return rec.Data, nil
}

func (s *Store) isSealed(ctx context.Context, runDir string) (bool, error) {
	snap, err := s.runDoc(runDir).Get(ctx)
	if err != nil {
		return false, invalidArtifact("check_sealed", err)
	}
	var meta store.Meta
	if err := snap.DataTo(&meta); err != nil {
		return false, invalidArtifact("check_sealed", err)
	}
	return meta.Status != "", nil
}

func firestoreNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func invalidArtifact(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, store.ErrInvalidArtifact, err)
}
