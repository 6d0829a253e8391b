package bitstate

// Option configures a Live register.
type Option func(*liveConfig)

type liveConfig struct {
	validator Validator
	hook      CommitHook
	sink      Sink
	logger    TransitionLogger
	initial   *State
	brand     *uint8
}

func applyOptions(opts []Option) liveConfig {
	cfg := liveConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithValidator attaches the validator consulted before every commit.
func WithValidator(v Validator) Option {
	return func(cfg *liveConfig) {
		cfg.validator = v
	}
}

// WithCommitHook attaches a hook run after every commit. A hook takes over
// notification from any attached sink.
func WithCommitHook(hook CommitHook) Option {
	return func(cfg *liveConfig) {
		cfg.hook = hook
	}
}

// WithSink attaches a notification sink pumped with each change mask.
func WithSink(sink Sink) Option {
	return func(cfg *liveConfig) {
		cfg.sink = sink
	}
}

// WithState seeds the register from a stored state. Status flags are
// cleared; serial and recent index are kept.
func WithState(s State) Option {
	return func(cfg *liveConfig) {
		state := s
		cfg.initial = &state
	}
}

// WithBrand tags the register with an owner-defined brand.
func WithBrand(brand uint8) Option {
	return func(cfg *liveConfig) {
		b := brand
		cfg.brand = &b
	}
}

// WriteOption adjusts a single mutator call.
type WriteOption func(*writeConfig)

type writeConfig struct {
	ifActive bool
}

// IfActive turns the call into a no-op when the item is disabled.
func IfActive() WriteOption {
	return func(cfg *writeConfig) {
		cfg.ifActive = true
	}
}

func applyWriteOptions(opts []WriteOption) writeConfig {
	cfg := writeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
