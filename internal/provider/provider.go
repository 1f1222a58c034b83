// Package provider defines the pull-mode sample source trait (§6 "Provider
// interface") and a stable-ID arena for providers (§9 design note (i):
// "introduce a simple arena for providers keyed by stable IDs; segments
// reference by ID" — this sidesteps the cyclic segment/provider/composition
// ownership graph the spec flags as a redesign target).
//
// Grounded on the teacher's internal/audiocore interfaces (AudioSource-style
// pull contracts returning a frame count plus explicit io.EOF-equivalent
// sentinel) and google/uuid for stable identity, matching the teacher's use
// of uuid.UUID for every long-lived domain object.
package provider

import (
	"sync"

	"github.com/google/uuid"

	"github.com/LuoYun-Team/soundflow-engine/internal/engineerr"
)

// Provider is a lazy, restartable-if-seekable sequence of interleaved float
// samples. Implementations must be safe to call only from one goroutine at
// a time (the pull pipeline never calls a Provider concurrently with
// itself), but Seek and Read may be invoked from different goroutines across
// calls as long as the caller serializes them.
type Provider interface {
	// Read writes up to len(out) samples (not frames) into out and returns
	// the number written. A return of 0 signals end-of-stream.
	Read(out []float32) int
	// LengthSamples returns the total sample count, or -1 if unknown.
	LengthSamples() int64
	SampleRate() int
	ChannelCount() int
	CanSeek() bool
	// Seek repositions the internal cursor to the given absolute sample
	// offset. Returns an error (Kind InvalidOperation) if CanSeek is false.
	Seek(sampleOffset int64) error

	// OnEndOfStream registers a callback fired exactly once after the last
	// sample has been read. OnPositionChanged fires whenever the internal
	// cursor moves (via Read or Seek).
	OnEndOfStream(fn func())
	OnPositionChanged(fn func(sampleOffset int64))
}

// ID is a stable provider identity, used by segments instead of holding a
// direct reference, and by project persistence (§6 "Project file").
type ID uuid.UUID

// String renders the ID in canonical UUID form.
func (id ID) String() string { return uuid.UUID(id).String() }

// NewID allocates a fresh stable ID.
func NewID() ID { return ID(uuid.New()) }

// ParseID parses a canonical UUID string back into an ID, for project
// file loading (§6 "Project file").
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, engineerr.New(err).Component("provider").Kind(engineerr.KindValidation).Build()
	}
	return ID(u), nil
}

// Arena is a process-wide (or composition-wide, callers choose the scope)
// registry mapping stable IDs to Providers, avoiding the cyclic
// segment<->provider<->composition ownership graph: segments hold an ID,
// the arena holds the live Provider, and owns_provider is recorded per entry
// and reported by Owned. Removing a segment, player or composition does not
// call Release; entries stay registered until Release is called.
type Arena struct {
	mu        sync.RWMutex
	providers map[ID]entry
}

type entry struct {
	provider Provider
	owned    bool
}

// NewArena returns an empty provider arena.
func NewArena() *Arena {
	return &Arena{providers: make(map[ID]entry)}
}

// Register adds p to the arena under a fresh ID. owned mirrors
// owns_provider (§3 AudioSegment) and is reported by Owned; Release removes
// the entry the same way whether or not it is owned.
func (a *Arena) Register(p Provider, owned bool) ID {
	id := NewID()
	a.mu.Lock()
	a.providers[id] = entry{provider: p, owned: owned}
	a.mu.Unlock()
	return id
}

// Lookup resolves a stable ID to its live Provider.
func (a *Arena) Lookup(id ID) (Provider, error) {
	a.mu.RLock()
	e, ok := a.providers[id]
	a.mu.RUnlock()
	if !ok {
		return nil, engineerr.Newf("no provider registered for id %s", id).
			Component("provider").Kind(engineerr.KindNotFound).Context("id", id.String()).Build()
	}
	return e.provider, nil
}

// Owned reports whether the registered provider for id was registered with
// owns_provider=true.
func (a *Arena) Owned(id ID) bool {
	a.mu.RLock()
	e, ok := a.providers[id]
	a.mu.RUnlock()
	return ok && e.owned
}

// Release removes id from the arena. Callers that registered the provider
// with owned=false are responsible for any external lifetime management;
// Release always forgets the arena's own reference regardless of owned.
func (a *Arena) Release(id ID) {
	a.mu.Lock()
	delete(a.providers, id)
	a.mu.Unlock()
}

// Count reports the number of providers currently registered.
func (a *Arena) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.providers)
}
