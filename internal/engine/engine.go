package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dublett/internal/blobstore"
	"dublett/internal/models"
	"dublett/internal/similarity"
	"dublett/internal/store"
)

const (
	DefaultLockWait     = 5 * time.Second
	DefaultClaimTimeout = 15 * time.Minute

	// DefaultCandidateLimit caps how many tenant files attach compares
	// against. Zero means unbounded.
	DefaultCandidateLimit = 5000
)

// Options tunes engine concurrency and claim recovery behavior.
type Options struct {
	// LockWait bounds how long a mutation waits for its scope lock
	// before surfacing ErrGroupContention.
	LockWait time.Duration

	// ClaimTimeout is how long an in-progress claim may sit idle before
	// stale-claim recovery reverts the group to pending.
	ClaimTimeout time.Duration

	// CandidateLimit caps the comparison set per attach.
	CandidateLimit int
}

func (o Options) withDefaults() Options {
	if o.LockWait <= 0 {
		o.LockWait = DefaultLockWait
	}
	if o.ClaimTimeout <= 0 {
		o.ClaimTimeout = DefaultClaimTimeout
	}
	if o.CandidateLimit < 0 {
		o.CandidateLimit = DefaultCandidateLimit
	}
	return o
}

// Engine is the duplicate detection and resolution core: it attaches newly
// fingerprinted files to groups, resolves groups, and serves group queries.
type Engine struct {
	store  store.EngineStore
	blobs  blobstore.BlobStore
	cmp    *similarity.Comparator
	logger *slog.Logger
	locks  *scopeLocks
	opts   Options
}

// New constructs an Engine over its collaborators.
func New(st store.EngineStore, blobs blobstore.BlobStore, cmp *similarity.Comparator, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	return &Engine{
		store:  st,
		blobs:  blobs,
		cmp:    cmp,
		logger: logger.With("component", "engine"),
		locks:  newScopeLocks(opts.LockWait),
		opts:   opts,
	}
}

// emitTransition logs one structured event per group state transition.
// Delivery is best effort; a logging failure never blocks resolution.
func (e *Engine) emitTransition(group *models.DupGroup, from, to models.ResolutionStatus, actor, reason string) {
	e.logger.Info("group transition",
		"event_id", uuid.NewString(),
		"group_id", group.ID,
		"tenant_id", group.TenantID,
		"from", from,
		"to", to,
		"actor", actor,
		"reason", reason,
	)
}

// emitError logs one structured event per engine error.
func (e *Engine) emitError(op string, err error, fields ...any) {
	all := append([]any{"event_id", uuid.NewString(), "op", op, "error", err}, fields...)
	e.logger.Error("engine error", all...)
}

// AutoResolvable reports whether a group qualifies for automatic
// resolution: exact duplicates only, auto-resolve not disabled, and no
// member manually flagged for retention.
func AutoResolvable(group *models.DupGroup, members []models.GroupMember) bool {
	if group == nil {
		return false
	}
	if group.GroupType != models.GroupExact || !group.AutoResolveEnabled {
		return false
	}
	for _, member := range members {
		if member.KeepFlag {
			return false
		}
	}
	return true
}
