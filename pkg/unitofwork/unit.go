package unitofwork

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	graphstate "github.com/goliatone/go-graphstate"
	"github.com/goliatone/go-graphstate/pkg/activity"
	"github.com/google/uuid"
)

// Option configures a UnitOfWork.
type Option func(*UnitOfWork)

// WithEmitter sends entity events through emitter after each commit.
func WithEmitter(emitter *activity.Emitter) Option {
	return func(u *UnitOfWork) {
		u.emitter = emitter
	}
}

// WithActivityHooks is shorthand for an enabled emitter over hooks using the
// default channel. Nil hooks are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	return func(u *UnitOfWork) {
		u.emitter = activity.NewEmitter(hooks, activity.Config{Enabled: true})
	}
}

// WithActor stamps actor and tenant ids on emitted events.
func WithActor(actorID, tenantID string) Option {
	return func(u *UnitOfWork) {
		u.actorID = actorID
		u.tenantID = tenantID
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(u *UnitOfWork) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithClock overrides the time source used for batches and events.
func WithClock(now func() time.Time) Option {
	return func(u *UnitOfWork) {
		if now != nil {
			u.now = now
		}
	}
}

// WithIDGenerator overrides how unit and batch ids are generated.
func WithIDGenerator(next func() uuid.UUID) Option {
	return func(u *UnitOfWork) {
		if next != nil {
			u.newID = next
		}
	}
}

type tracked struct {
	entry     graphstate.Entry
	operation graphstate.Operation
}

// UnitOfWork collects tracked entities until they are committed or discarded.
// It is safe for concurrent use; calls are serialised.
type UnitOfWork struct {
	mu       sync.Mutex
	id       string
	resolver *graphstate.Resolver
	backend  Backend
	emitter  *activity.Emitter
	logger   *slog.Logger
	now      func() time.Time
	newID    func() uuid.UUID
	actorID  string
	tenantID string

	entries []tracked
	index   map[any]int
}

// New constructs a UnitOfWork. A nil resolver gets a default one.
func New(resolver *graphstate.Resolver, backend Backend, opts ...Option) (*UnitOfWork, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	if resolver == nil {
		resolver = graphstate.NewResolver()
	}
	u := &UnitOfWork{
		resolver: resolver,
		backend:  backend,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.New,
		index:    map[any]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	u.id = u.newID().String()
	return u, nil
}

// ID returns the unit id.
func (u *UnitOfWork) ID() string {
	return u.id
}

// Track resolves root with intent and merges the result into the unit. An
// instance tracked again keeps its first path and takes the new state. On
// error nothing is merged.
func (u *UnitOfWork) Track(root any, intent graphstate.Intent) (*graphstate.ChangeSet, error) {
	changes, err := u.resolver.Resolve(root, intent)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, entry := range changes.Entries() {
		if i, ok := u.index[entry.Entity]; ok {
			// the first path stays; state and keys follow the latest resolution
			current := &u.entries[i]
			current.entry.State = entry.State
			current.entry.KeySet = entry.KeySet
			current.entry.Keys = entry.Keys
			current.operation = changes.Operation()
			continue
		}
		u.index[entry.Entity] = len(u.entries)
		u.entries = append(u.entries, tracked{entry: entry, operation: changes.Operation()})
	}
	return changes, nil
}

// Add tracks root with the Add intent.
func (u *UnitOfWork) Add(root any) (*graphstate.ChangeSet, error) {
	return u.Track(root, graphstate.Add())
}

// Update tracks root with the Update intent.
func (u *UnitOfWork) Update(root any) (*graphstate.ChangeSet, error) {
	return u.Track(root, graphstate.Update())
}

// Remove tracks root with the Remove intent.
func (u *UnitOfWork) Remove(root any) (*graphstate.ChangeSet, error) {
	return u.Track(root, graphstate.Remove())
}

// Attach tracks root with the Attach intent.
func (u *UnitOfWork) Attach(root any) (*graphstate.ChangeSet, error) {
	return u.Track(root, graphstate.Attach())
}

// AttachWithState tracks root with the AttachWithState intent.
func (u *UnitOfWork) AttachWithState(root any, state graphstate.State) (*graphstate.ChangeSet, error) {
	return u.Track(root, graphstate.AttachWithState(state))
}

// Entry tracks only root, in state.
func (u *UnitOfWork) Entry(root any, state graphstate.State) (*graphstate.ChangeSet, error) {
	return u.Track(root, graphstate.EntryState(state))
}

// TrackGraph tracks root with states chosen by visitor.
func (u *UnitOfWork) TrackGraph(root any, visitor graphstate.Visitor) (*graphstate.ChangeSet, error) {
	return u.Track(root, graphstate.TrackGraph(visitor))
}

// State returns the state currently tracked for entity.
func (u *UnitOfWork) State(entity any) (graphstate.State, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	i, ok := u.index[entity]
	if !ok {
		return graphstate.Detached, false
	}
	return u.entries[i].entry.State, true
}

// Entries returns the tracked entries in first-tracked order.
func (u *UnitOfWork) Entries() []graphstate.Entry {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]graphstate.Entry, 0, len(u.entries))
	for _, item := range u.entries {
		out = append(out, item.entry)
	}
	return out
}

// Len returns the number of tracked entities.
func (u *UnitOfWork) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.entries)
}

// Commit hands the tracked entities to the backend as one batch. The unit is
// cleared only when the backend accepts the batch. An empty unit commits
// nothing and returns a zero Receipt.
func (u *UnitOfWork) Commit(ctx context.Context) (Receipt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.entries) == 0 {
		return Receipt{}, nil
	}

	batch := Batch{
		ID:        u.newID().String(),
		UnitID:    u.id,
		CreatedAt: u.now(),
		Writes:    make([]Write, 0, len(u.entries)),
	}
	for _, item := range u.entries {
		batch.Writes = append(batch.Writes, Write{
			Kind:      KindOf(item.entry.State),
			Operation: item.operation,
			Entry:     item.entry,
		})
	}

	receipt, err := u.backend.Apply(ctx, batch)
	if err != nil {
		u.logger.Warn("unit of work commit failed",
			slog.String("unit_id", u.id),
			slog.String("batch_id", batch.ID),
			slog.Int("writes", len(batch.Writes)),
			slog.Any("error", err),
		)
		return Receipt{}, fmt.Errorf("unitofwork: apply batch %s: %w", batch.ID, err)
	}
	if receipt.BatchID == "" {
		receipt.BatchID = batch.ID
	}
	u.logger.Debug("unit of work committed",
		slog.String("unit_id", u.id),
		slog.String("batch_id", batch.ID),
		slog.Int("inserted", receipt.Inserted),
		slog.Int("updated", receipt.Updated),
		slog.Int("deleted", receipt.Deleted),
		slog.Int("skipped", receipt.Skipped),
	)

	u.emit(ctx, batch)
	u.reset()
	return receipt, nil
}

// Discard drops every tracked entity and returns how many were dropped.
func (u *UnitOfWork) Discard() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := len(u.entries)
	u.reset()
	return n
}

func (u *UnitOfWork) reset() {
	u.entries = nil
	u.index = map[any]int{}
}

// emit reports committed writes. Hook failures are logged; the batch is
// already applied.
func (u *UnitOfWork) emit(ctx context.Context, batch Batch) {
	if !u.emitter.Enabled() {
		return
	}
	for _, write := range batch.Writes {
		input := activity.EntityEventInput{
			ActorID:    u.actorID,
			TenantID:   u.tenantID,
			Type:       write.Type,
			Path:       write.Path,
			Keys:       write.Keys,
			BatchID:    batch.ID,
			UnitID:     batch.UnitID,
			Operation:  write.Operation.String(),
			OccurredAt: u.now(),
		}
		var event activity.Event
		switch write.Kind {
		case WriteInsert:
			event = activity.BuildEntityAddedEvent(input)
		case WriteUpdate:
			event = activity.BuildEntityModifiedEvent(input)
		case WriteDelete:
			event = activity.BuildEntityDeletedEvent(input)
		default:
			continue
		}
		if err := u.emitter.Emit(ctx, event); err != nil {
			u.logger.Warn("activity hook failed",
				slog.String("batch_id", batch.ID),
				slog.String("verb", event.Verb),
				slog.Any("error", err),
			)
		}
	}
}
