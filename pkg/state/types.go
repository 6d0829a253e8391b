package state

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/goliatone/go-bitstate"
	"github.com/google/uuid"
)

var (
	ErrETagMismatch = errors.New("state: etag mismatch")
	ErrNotFound     = errors.New("state: register not found")
	ErrInvalidRef   = errors.New("state: invalid ref")
)

// Ref identifies one persisted register within a domain.
type Ref struct {
	Domain string
	Name   string
}

// Identifier returns the canonical storage key for r.
func (r Ref) Identifier() (string, error) {
	domain := strings.TrimSpace(r.Domain)
	name := strings.TrimSpace(r.Name)
	if domain == "" {
		return "", fmt.Errorf("%w: domain is required", ErrInvalidRef)
	}
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidRef)
	}
	if strings.Contains(domain, "/") {
		return "", fmt.Errorf("%w: domain %q must not contain '/'", ErrInvalidRef, domain)
	}
	return domain + "/" + name, nil
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves the state of a single register.
type Store interface {
	Load(ctx context.Context, ref Ref) (snapshot bitstate.State, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot bitstate.State, meta Meta) (Meta, error)
}

// Mutator edits a restored register before it is saved back.
type Mutator func(*bitstate.Register) error

// SaveOption configures Save and Mutate.
type SaveOption func(*saveConfig)

type saveConfig struct {
	expectETag  string
	skipHistory bool
	extra       map[string]string
	now         func() time.Time
}

// IfMatch rejects the save with ErrETagMismatch unless the stored ETag is
// etag. An absent record matches any etag.
func IfMatch(etag string) SaveOption {
	return func(cfg *saveConfig) {
		cfg.expectETag = etag
	}
}

// WithoutHistory stores a fresh history word, keeping only the brand.
func WithoutHistory() SaveOption {
	return func(cfg *saveConfig) {
		cfg.skipHistory = true
	}
}

// WithExtra attaches adapter-specific metadata.
func WithExtra(extra map[string]string) SaveOption {
	return func(cfg *saveConfig) {
		cfg.extra = cloneExtra(extra)
	}
}

// WithClock overrides the UpdatedAt source.
func WithClock(now func() time.Time) SaveOption {
	return func(cfg *saveConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

func applySaveOptions(opts []SaveOption) saveConfig {
	cfg := saveConfig{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// ETagFor derives an ETag from the serial and the four words of s.
func ETagFor(s bitstate.State) string {
	h := fnv.New64a()
	for _, word := range s.Words() {
		var buf [8]byte
		for i := range buf {
			buf[i] = byte(word >> (8 * i))
		}
		_, _ = h.Write(buf[:])
	}
	return fmt.Sprintf("%d-%016x", s.History.Serial, h.Sum64())
}

// Save stores the current value of view under ref with a new snapshot id.
func Save(ctx context.Context, store Store, ref Ref, view bitstate.Reader, opts ...SaveOption) (Meta, error) {
	if store == nil {
		return Meta{}, fmt.Errorf("state: store is required")
	}
	if view == nil {
		return Meta{}, fmt.Errorf("state: register is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return Meta{}, err
	}
	cfg := applySaveOptions(opts)
	if cfg.expectETag != "" {
		_, loaded, ok, err := store.Load(ctx, ref)
		if err != nil {
			return Meta{}, fmt.Errorf("state: load %q: %w", ref.Name, err)
		}
		if ok && loaded.ETag != cfg.expectETag {
			return loaded, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, cfg.expectETag, loaded.ETag)
		}
	}
	return save(ctx, store, ref, view.State(), cfg)
}

func save(ctx context.Context, store Store, ref Ref, s bitstate.State, cfg saveConfig) (Meta, error) {
	if cfg.skipHistory {
		s = s.WithoutHistory()
	}
	// Status flags describe the in-memory object, not the value.
	s = bitstate.StateFromWords(s.Words())
	s.History.Flags = 0
	meta := Meta{
		SnapshotID: uuid.NewString(),
		ETag:       ETagFor(s),
		UpdatedAt:  cfg.now().UTC(),
		Extra:      cfg.extra,
	}
	saved, err := store.Save(ctx, ref, s, meta)
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %q: %w", ref.Name, err)
	}
	return saved, nil
}

// Restore loads the state stored under ref.
func Restore(ctx context.Context, store Store, ref Ref) (bitstate.State, Meta, error) {
	if store == nil {
		return bitstate.State{}, Meta{}, fmt.Errorf("state: store is required")
	}
	s, meta, ok, err := store.Load(ctx, ref)
	if err != nil {
		return bitstate.State{}, Meta{}, fmt.Errorf("state: load %q: %w", ref.Name, err)
	}
	if !ok {
		return bitstate.State{}, Meta{}, fmt.Errorf("%w: %s/%s", ErrNotFound, ref.Domain, ref.Name)
	}
	return s, meta, nil
}

// RestoreLive loads ref into a new live register built with opts.
func RestoreLive(ctx context.Context, store Store, ref Ref, opts ...bitstate.Option) (*bitstate.Live, Meta, error) {
	s, meta, err := Restore(ctx, store, ref)
	if err != nil {
		return nil, Meta{}, err
	}
	opts = append([]bitstate.Option{bitstate.WithState(s)}, opts...)
	return bitstate.NewLive(opts...), meta, nil
}

// Mutate loads ref (or an empty register when absent), applies fn, and saves
// the result. Writes through fn advance the serial like any fresh register.
// A register left with its error flag set is not saved.
func Mutate(ctx context.Context, store Store, ref Ref, fn Mutator, opts ...SaveOption) (bitstate.State, Meta, error) {
	if store == nil {
		return bitstate.State{}, Meta{}, fmt.Errorf("state: store is required")
	}
	if fn == nil {
		return bitstate.State{}, Meta{}, fmt.Errorf("state: mutator is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return bitstate.State{}, Meta{}, err
	}
	cfg := applySaveOptions(opts)

	s, loaded, ok, err := store.Load(ctx, ref)
	if err != nil {
		return bitstate.State{}, Meta{}, fmt.Errorf("state: load %q: %w", ref.Name, err)
	}
	if !ok {
		s, loaded = bitstate.NewState(), Meta{}
	}
	if cfg.expectETag != "" && ok && loaded.ETag != cfg.expectETag {
		return bitstate.State{}, loaded, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, cfg.expectETag, loaded.ETag)
	}

	reg := bitstate.RegisterFromState(s)
	if err := fn(reg); err != nil {
		return bitstate.State{}, loaded, err
	}
	if reg.HasError() {
		return bitstate.State{}, loaded, fmt.Errorf("state: mutate %q: %w", ref.Name, reg.Err())
	}
	if cfg.extra == nil {
		cfg.extra = cloneExtra(loaded.Extra)
	}
	saved, err := save(ctx, store, ref, reg.State(), cfg)
	if err != nil {
		return bitstate.State{}, loaded, err
	}
	return reg.State(), saved, nil
}

func cloneExtra(extra map[string]string) map[string]string {
	if extra == nil {
		return nil
	}
	out := make(map[string]string, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}
