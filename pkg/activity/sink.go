package activity

import (
	"context"
	"sync"

	"github.com/goliatone/go-bitstate"
	"github.com/google/uuid"
)

// SinkConfig describes how a Sink labels the events it emits.
type SinkConfig struct {
	// ObjectID identifies the register. A random UUID is used when empty.
	ObjectID       string
	ActorID        string
	UserID         string
	TenantID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	Catalog        *bitstate.Catalog
	// Context is passed to hooks; context.Background when nil.
	Context context.Context
	// OnError receives hook failures. Pump has no error return.
	OnError func(error)
}

// Sink turns committed change masks into register.changed events. It
// satisfies bitstate.Sink along with the optional observer counting and
// detaching capabilities.
type Sink struct {
	emitter *Emitter
	cfg     SinkConfig

	mu       sync.Mutex
	source   bitstate.Reader
	detached bool
}

// NewSink constructs a sink emitting through emitter.
func NewSink(emitter *Emitter, cfg SinkConfig) *Sink {
	if cfg.ObjectID == "" {
		cfg.ObjectID = uuid.NewString()
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	cfg.Metadata = cloneMap(cfg.Metadata)
	cfg.Recipients = cloneStrings(cfg.Recipients)
	return &Sink{emitter: emitter, cfg: cfg}
}

// Bind sets the register whose values are reported with each change. The
// sink is usually built before the live register it serves.
func (s *Sink) Bind(source bitstate.Reader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
}

// ObjectID returns the register identifier used in events.
func (s *Sink) ObjectID() string {
	return s.cfg.ObjectID
}

// Pump implements bitstate.Sink.
func (s *Sink) Pump(changed bitstate.Mask) {
	s.mu.Lock()
	detached, source := s.detached, s.source
	s.mu.Unlock()
	if detached || changed == 0 {
		return
	}
	input := RegisterEventInput{
		ActorID:        s.cfg.ActorID,
		UserID:         s.cfg.UserID,
		TenantID:       s.cfg.TenantID,
		ObjectID:       s.cfg.ObjectID,
		Channel:        s.cfg.Channel,
		DefinitionCode: s.cfg.DefinitionCode,
		Recipients:     s.cfg.Recipients,
		Metadata:       s.cfg.Metadata,
		Changed:        changed,
		Catalog:        s.cfg.Catalog,
	}
	if source != nil {
		state := source.State()
		input.State = &state
	}
	if err := s.emitter.Emit(s.cfg.Context, BuildRegisterChangedEvent(input)); err != nil && s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}

// ObserverCount reports the number of hooks receiving events.
func (s *Sink) ObserverCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return 0
	}
	return s.emitter.HookCount()
}

// Detach stops all further emission.
func (s *Sink) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = true
	s.source = nil
}

var (
	_ bitstate.Sink            = (*Sink)(nil)
	_ bitstate.ObserverCounter = (*Sink)(nil)
	_ bitstate.Detacher        = (*Sink)(nil)
)
