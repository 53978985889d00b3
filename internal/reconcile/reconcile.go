// Package reconcile keeps the client-visible favorite and watch-later
// sets in sync with the server. Toggles apply optimistically and roll
// back when the server call fails; the server remains the source of
// truth and every Load overwrites local state.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type Kind string

const (
	Favorite   Kind = "favorite"
	WatchLater Kind = "watchlater"
)

var (
	// ErrToggleInFlight rejects a toggle while a previous toggle for the
	// same (kind, titleID) target is still outstanding.
	ErrToggleInFlight = errors.New("reconcile: toggle already in flight")

	// ErrLoadInFlight rejects a load while a previous load for the same
	// kind is still outstanding. Overlapping loads in one view could land
	// out of order and let a staler response overwrite a fresher one.
	ErrLoadInFlight = errors.New("reconcile: load already in flight")

	// ErrStaleView marks a response that arrived after the view it
	// belonged to was left. Never surfaced past the view layer.
	ErrStaleView = errors.New("reconcile: stale view")
)

// RelationService is the server-side relation API as the reconciler sees
// it. Add and Remove must be idempotent on the server: re-adding a present
// relation or removing an absent one is a no-op success.
type RelationService interface {
	List(ctx context.Context, kind Kind) ([]string, error)
	Add(ctx context.Context, kind Kind, titleID string) error
	Remove(ctx context.Context, kind Kind, titleID string) error
}

type ToggleResult struct {
	TitleID string
	Kind    Kind
	// Present is the membership after the toggle settled.
	Present bool
}

type target struct {
	kind    Kind
	titleID string
}

// Reconciler owns the optimistic relation state for one principal's view
// session. Safe for concurrent use, though the intended model is one
// interactive session issuing one operation at a time per target.
type Reconciler struct {
	svc RelationService

	mu       sync.Mutex
	epoch    uint64
	sets     map[Kind]map[string]bool
	inflight map[target]bool
	loading  map[Kind]bool
}

func New(svc RelationService) *Reconciler {
	return &Reconciler{
		svc:      svc,
		sets:     map[Kind]map[string]bool{},
		inflight: map[target]bool{},
		loading:  map[Kind]bool{},
	}
}

// EnterView starts a new view session: local state is discarded and any
// response still in flight for the previous view will be dropped when it
// lands.
func (r *Reconciler) EnterView() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	r.sets = map[Kind]map[string]bool{}
	r.inflight = map[target]bool{}
	r.loading = map[Kind]bool{}
}

// Load fetches the full relation set for kind and overwrites local state.
// This is the reconciliation point that corrects any optimistic drift.
// At most one load per kind may be outstanding.
func (r *Reconciler) Load(ctx context.Context, kind Kind) ([]string, error) {
	r.mu.Lock()
	if r.loading[kind] {
		r.mu.Unlock()
		return nil, ErrLoadInFlight
	}
	r.loading[kind] = true
	epoch := r.epoch
	r.mu.Unlock()

	ids, err := r.svc.List(ctx, kind)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.epoch != epoch {
		return nil, ErrStaleView
	}
	delete(r.loading, kind)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	r.sets[kind] = set
	return ids, nil
}

// Toggle flips titleID's membership in kind. The local flip happens before
// the server call; a server failure rolls it back so local and server
// state never diverge past the call itself.
func (r *Reconciler) Toggle(ctx context.Context, kind Kind, titleID string) (ToggleResult, error) {
	tgt := target{kind: kind, titleID: titleID}

	r.mu.Lock()
	if r.inflight[tgt] {
		r.mu.Unlock()
		return ToggleResult{}, ErrToggleInFlight
	}
	r.inflight[tgt] = true
	epoch := r.epoch

	set := r.sets[kind]
	if set == nil {
		set = map[string]bool{}
		r.sets[kind] = set
	}
	wasPresent := set[titleID]
	// Optimistic flip: the UI sees the new state immediately.
	if wasPresent {
		delete(set, titleID)
	} else {
		set[titleID] = true
	}
	r.mu.Unlock()

	var err error
	if wasPresent {
		err = r.svc.Remove(ctx, kind, titleID)
	} else {
		err = r.svc.Add(ctx, kind, titleID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.epoch != epoch {
		// The view moved on; neither the result nor a rollback applies to
		// the state that replaced it.
		return ToggleResult{}, ErrStaleView
	}
	delete(r.inflight, tgt)

	if err != nil {
		// Roll back the optimistic flip.
		if wasPresent {
			r.sets[kind][titleID] = true
		} else {
			delete(r.sets[kind], titleID)
		}
		return ToggleResult{TitleID: titleID, Kind: kind, Present: wasPresent},
			fmt.Errorf("toggle %s %s: %w", kind, titleID, err)
	}

	return ToggleResult{TitleID: titleID, Kind: kind, Present: !wasPresent}, nil
}

// Contains reports titleID's current local membership in kind.
func (r *Reconciler) Contains(kind Kind, titleID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sets[kind][titleID]
}

// Snapshot copies the current local set for kind.
func (r *Reconciler) Snapshot(kind Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sets[kind]))
	for id := range r.sets[kind] {
		out = append(out, id)
	}
	return out
}
