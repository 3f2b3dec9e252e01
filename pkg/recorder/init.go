package recorder

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tracecore/tracecore/pkg/store"
)

// Options bundles everything needed to stand up a Recorder and immediately
// start a run with it, mirroring the `recorder.Init(opts) (*Recorder, error)`
// entry point named in SPEC_FULL.md §6. Callers that need to reuse one
// Recorder across successive runs should use New followed by (*Recorder).Init
// instead.
type Options struct {
	Config Config
	Meta   InitMeta

	// Store overrides the store built from Config.Store.Backend. Leave nil
	// to construct a store.FileStore (or, for "firestore", the caller's own
	// *firestore.Store — this package does not import cloud.google.com/go
	// directly to avoid forcing that dependency on callers who don't need it).
	Store store.Store

	// Locker overrides the locker built from Config.Lock.Backend.
	Locker Locker
}

// Init constructs a Recorder from opts and starts a run on it in one call.
func Init(ctx context.Context, opts Options) (*Recorder, string, error) {
	st := opts.Store
	if st == nil {
		switch opts.Config.Store.Backend {
		case "", "file":
			st = store.NewFileStore()
		case "firestore":
			return nil, "", fmt.Errorf("recorder: store.backend=firestore requires passing opts.Store explicitly (see pkg/store/firestore)")
		default:
			return nil, "", fmt.Errorf("recorder: unknown store backend %q", opts.Config.Store.Backend)
		}
	}

	locker := opts.Locker
	if locker == nil {
		switch opts.Config.Lock.Backend {
		case "", "local":
			locker = NewLocalLock()
		case "redis":
			client := redis.NewClient(&redis.Options{Addr: opts.Config.Lock.RedisAddr})
			locker = NewRedisLock(client, "")
		default:
			return nil, "", fmt.Errorf("recorder: unknown lock backend %q", opts.Config.Lock.Backend)
		}
	}

	rec, err := New(opts.Config, st, locker)
	if err != nil {
		return nil, "", err
	}
	runID, err := rec.Init(ctx, opts.Meta)
	if err != nil {
		return nil, "", err
	}
	return rec, runID, nil
}
