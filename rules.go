package bitstate

import "fmt"

// Rule is a boolean expression a proposal must satisfy to be committed.
//
// Every rule sees these bindings:
//
//	prior, next   register views: bits, disabled, radio, serial (unsigned),
//	              items and active (maps of catalog name to bool)
//	index         map of catalog name to item index
//	changed       indices differing between prior and next (unsigned)
//	signals       signals delivered to the round (unsigned)
//	recent        index of the triggering change, -1 for signal rounds
//	tag           string form of the firing signal's tag
//	now, args, metadata
//
// plus the functions of RuleFunctions.
type Rule struct {
	Name string
	Expr string
}

var ruleVariables = []string{"prior", "next", "index", "changed", "signals", "recent", "tag"}

// RuleOption configures a RuleValidator.
type RuleOption func(*ruleConfig)

type ruleConfig struct {
	catalog  *Catalog
	registry *FunctionRegistry
	cache    ProgramCache
	logger   EvaluatorLogger
	args     map[string]any
	metadata map[string]any
	onError  func(Rule, error)
}

// RuleWithCatalog exposes item names to rules.
func RuleWithCatalog(catalog *Catalog) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.catalog = catalog
	}
}

// RuleWithFunctions adds custom functions next to the built-in ones. Only
// the engine-specific constructors use it.
func RuleWithFunctions(registry *FunctionRegistry) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.registry = registry.Clone()
	}
}

// RuleWithProgramCache shares compiled programs between validators built by
// the engine-specific constructors.
func RuleWithProgramCache(cache ProgramCache) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.cache = cache
	}
}

// RuleWithArgs sets the args binding.
func RuleWithArgs(args map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.args = copyMap(args)
	}
}

// RuleWithMetadata sets the metadata binding.
func RuleWithMetadata(metadata map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.metadata = copyMap(metadata)
	}
}

// RuleWithErrorHandler is called whenever a rule fails to evaluate. The
// proposal is rejected either way.
func RuleWithErrorHandler(fn func(Rule, error)) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.onError = fn
	}
}

func applyRuleOptions(opts []RuleOption) ruleConfig {
	cfg := ruleConfig{logger: noopEvaluatorLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

type compiledRule struct {
	name    string
	expr    string
	program CompiledRule
}

// RuleValidator is a Validator that accepts a proposal only when every rule
// evaluates to true. It never edits the proposal.
type RuleValidator struct {
	engine  string
	rules   []compiledRule
	cfg     ruleConfig
	lastErr error
}

// NewRuleValidator compiles rules with evaluator. The evaluator must already
// provide any functions the rules call; see NewExprRuleValidator and friends
// for constructors that register RuleFunctions.
func NewRuleValidator(evaluator Evaluator, rules []Rule, opts ...RuleOption) (*RuleValidator, error) {
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	cfg := applyRuleOptions(opts)
	v := &RuleValidator{
		engine: evaluatorEngineName(evaluator),
		rules:  make([]compiledRule, 0, len(rules)),
		cfg:    cfg,
	}
	for i, rule := range rules {
		name := rule.Name
		if name == "" {
			name = fmt.Sprintf("rule[%d]", i)
		}
		program, err := evaluator.Compile(rule.Expr, WithVariables(ruleVariables...))
		if err != nil {
			return nil, wrapEvaluationError(v.engine, rule.Expr, name, err)
		}
		v.rules = append(v.rules, compiledRule{name: name, expr: rule.Expr, program: program})
	}
	return v, nil
}

// NewExprRuleValidator compiles rules with the expr engine.
func NewExprRuleValidator(rules []Rule, opts ...RuleOption) (*RuleValidator, error) {
	cfg := applyRuleOptions(opts)
	evaluator := NewExprEvaluator(
		ExprWithFunctionRegistry(RuleFunctions().merged(cfg.registry)),
		ExprWithProgramCache(cfg.cache),
	)
	return NewRuleValidator(evaluator, rules, opts...)
}

// NewCELRuleValidator compiles rules with the CEL engine.
func NewCELRuleValidator(rules []Rule, opts ...RuleOption) (*RuleValidator, error) {
	cfg := applyRuleOptions(opts)
	evaluator := NewCELEvaluator(
		CELWithFunctionRegistry(RuleFunctions().merged(cfg.registry)),
		CELWithProgramCache(cfg.cache),
	)
	return NewRuleValidator(evaluator, rules, opts...)
}

// NewJSRuleValidator compiles rules with the goja engine. It returns
// ErrNoEvaluator unless built with the js_eval tag.
func NewJSRuleValidator(rules []Rule, opts ...RuleOption) (*RuleValidator, error) {
	cfg := applyRuleOptions(opts)
	evaluator := NewJSEvaluator(
		JSWithFunctionRegistry(RuleFunctions().merged(cfg.registry)),
		JSWithProgramCache(cfg.cache),
	)
	return NewRuleValidator(evaluator, rules, opts...)
}

// Engine names the evaluator backing the rules.
func (v *RuleValidator) Engine() string {
	return v.engine
}

// Err returns the evaluation error of the most recent rejection, if any.
func (v *RuleValidator) Err() error {
	return v.lastErr
}

// Validate implements Validator.
func (v *RuleValidator) Validate(prior PriorView, next *Proposal) bool {
	v.lastErr = nil
	ctx := RuleContext{
		Snapshot: ruleBindings(prior, next, v.cfg.catalog),
		Args:     v.cfg.args,
		Metadata: v.cfg.metadata,
	}.withDefaults()
	for _, rule := range v.rules {
		accepted, err := evaluateRule(v.engine, rule, ctx, v.cfg.logger)
		if err != nil {
			err = withTrigger(err, describeTrigger(next, v.cfg.catalog))
			v.lastErr = err
			if v.cfg.onError != nil {
				v.cfg.onError(Rule{Name: rule.name, Expr: rule.expr}, err)
			}
			return false
		}
		if !accepted {
			return false
		}
	}
	return true
}

func ruleBindings(prior PriorView, next *Proposal, catalog *Catalog) map[string]any {
	index := make(map[string]any, catalog.Len())
	if catalog != nil {
		for name, i := range catalog.index {
			index[name] = int64(i)
		}
	}
	tag := ""
	if t := next.SignalTag(); t != nil {
		tag = fmt.Sprint(t)
	}
	return map[string]any{
		"prior":   stateBinding(prior.State(), catalog),
		"next":    stateBinding(next.State(), catalog),
		"index":   index,
		"changed": uint64(next.Delta()),
		"signals": uint64(next.Signals()),
		"recent":  int64(next.Recent()),
		"tag":     tag,
	}
}

func stateBinding(s State, catalog *Catalog) map[string]any {
	return map[string]any{
		"bits":     uint64(s.Bits),
		"disabled": uint64(s.Disabled),
		"radio":    uint64(s.Radio),
		"serial":   s.History.Serial,
		"items":    catalog.bind(s.Bits),
		"active":   catalog.bind(^s.Disabled),
	}
}

func copyMap(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
