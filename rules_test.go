package bitstate

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

var evaluatorFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Evaluator
}{
	{
		name: "expr",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry))
		},
	},
	{
		name: "cel",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry))
		},
	},
	{
		name: "js",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry))
		},
	},
}

var ruleValidatorFactories = []struct {
	name string
	new  func(rules []Rule, opts ...RuleOption) (*RuleValidator, error)
}{
	{name: "expr", new: NewExprRuleValidator},
	{name: "cel", new: NewCELRuleValidator},
	{name: "js", new: NewJSRuleValidator},
}

func skipUnavailable(t *testing.T, engine string) {
	t.Helper()
	if engine == "js" && !jsEvaluatorAvailable() {
		t.Skip("js evaluator requires the js_eval build tag")
	}
}

var fanCatalog = MustCatalog("power", "low", "mid", "high", "alarm")

func newFan(t *testing.T, validator Validator) *Live {
	t.Helper()
	live := NewLive(WithValidator(validator))
	if err := live.ConfigureRadioGroup(1, 3); err != nil {
		t.Fatalf("configure radio: %v", err)
	}
	return live
}

func TestEvaluatorsWithRuleFunctions(t *testing.T) {
	cases := []struct {
		expr string
		want any
	}{
		{"isSet(mask, 2)", true},
		{"isSet(mask, 1)", false},
		{"popcount(mask) == 2", true},
		{"bit(3) == mask - bit(2)", true},
	}
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			evaluator := factory.new(nil, RuleFunctions())
			for _, tc := range cases {
				got, err := evaluator.Evaluate(RuleContext{Snapshot: map[string]any{"mask": uint64(0b1100)}}, tc.expr)
				if err != nil {
					t.Fatalf("%s: %v", tc.expr, err)
				}
				if got != tc.want {
					t.Fatalf("%s: got %v (%T), want %v", tc.expr, got, got, tc.want)
				}
			}
		})
	}
}

func TestEvaluatorsRejectEmptyExpressions(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			evaluator := factory.new(nil, nil)
			if _, err := evaluator.Evaluate(RuleContext{}, ""); err == nil {
				t.Fatalf("expected error for empty expression")
			}
			if _, err := evaluator.Compile(""); err == nil {
				t.Fatalf("expected error for empty expression")
			}
		})
	}
}

func TestRuleValidatorGuardsSpeedsOnPower(t *testing.T) {
	rules := []Rule{
		{Name: "speed-needs-power", Expr: "!(next.items.low || next.items.mid || next.items.high) || next.items.power"},
		{Name: "bounded-change", Expr: "popcount(changed) <= 2"},
		{Name: "serial-advances", Expr: "prior.serial < next.serial"},
	}
	for _, factory := range ruleValidatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			validator, err := factory.new(rules, RuleWithCatalog(fanCatalog))
			if err != nil {
				t.Fatalf("compile rules: %v", err)
			}
			if validator.Engine() != factory.name {
				t.Fatalf("expected engine %s, got %s", factory.name, validator.Engine())
			}
			live := newFan(t, validator)

			if live.Set(1) {
				t.Fatalf("speed without power must be rejected")
			}
			if validator.Err() != nil {
				t.Fatalf("a false rule is not an error: %v", validator.Err())
			}
			if !live.Set(0) || !live.Set(1) {
				t.Fatalf("expected power then low to commit")
			}
			if !live.Set(3) || live.Get(1) || live.ChangedMask() != Bit(1)|Bit(3) {
				t.Fatalf("expected radio switch to high: %+v", live.State())
			}
			if live.Clear(0) {
				t.Fatalf("cutting power while a speed is set must be rejected")
			}
		})
	}
}

func TestRuleValidatorSignalBindings(t *testing.T) {
	rules := []Rule{
		{Name: "alarm-tag", Expr: `!isSet(signals, index.alarm) || tag == "smoke"`},
		{Name: "signal-rounds-have-no-recent", Expr: "popcount(signals) == 0 || recent == -1"},
	}
	for _, factory := range ruleValidatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			var events []EvaluatorLogEvent
			validator, err := factory.new(rules,
				RuleWithCatalog(fanCatalog),
				RuleWithLogger(EvaluatorLoggerFunc(func(e EvaluatorLogEvent) { events = append(events, e) })),
			)
			if err != nil {
				t.Fatalf("compile rules: %v", err)
			}
			live := newFan(t, validator)
			if !live.Set(fanCatalog.Mask("power").Lowest()) {
				t.Fatalf("direct writes pass both rules, got %+v", events)
			}
			events = nil

			live.Signal(4, "steam")
			if len(events) != 1 || events[0].Accepted || events[0].Rule != "alarm-tag" {
				t.Fatalf("expected the first rule to reject, got %+v", events)
			}
			events = nil
			live.Signal(4, "smoke")
			if len(events) != 2 || !events[0].Accepted || !events[1].Accepted {
				t.Fatalf("expected both rules to accept, got %+v", events)
			}
			if events[1].Engine != factory.name {
				t.Fatalf("expected engine %s in log, got %s", factory.name, events[1].Engine)
			}
		})
	}
}

func TestRuleValidatorArgsAndCustomFunctions(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("even", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("even: expected 1 argument")
		}
		n, err := toIndex(args[0])
		if err != nil {
			return nil, err
		}
		return n%2 == 0, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	rules := []Rule{
		{Name: "limit", Expr: "popcount(next.bits) <= args.limit"},
		{Name: "even-recent", Expr: "recent < 0 || even(recent)"},
	}
	for _, factory := range ruleValidatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			validator, err := factory.new(rules,
				RuleWithFunctions(registry),
				RuleWithArgs(map[string]any{"limit": int64(2)}),
			)
			if err != nil {
				t.Fatalf("compile rules: %v", err)
			}
			live := NewLive(WithValidator(validator))
			if live.Set(5) {
				t.Fatalf("odd index must be rejected")
			}
			if !live.Set(10) || !live.Set(20) {
				t.Fatalf("even indices must commit")
			}
			if live.Set(30) {
				t.Fatalf("third item must exceed the limit")
			}
		})
	}
}

func TestRuleValidatorNonBooleanResult(t *testing.T) {
	for _, factory := range ruleValidatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			var handled []string
			validator, err := factory.new([]Rule{{Expr: "popcount(changed)"}},
				RuleWithErrorHandler(func(rule Rule, err error) { handled = append(handled, rule.Name) }),
			)
			if err != nil {
				t.Fatalf("compile rules: %v", err)
			}
			live := NewLive(WithValidator(validator))
			if live.Set(0) {
				t.Fatalf("non-boolean results must reject")
			}
			if !errors.Is(validator.Err(), ErrRuleResult) {
				t.Fatalf("expected ErrRuleResult, got %v", validator.Err())
			}
			var evalErr *EvaluationError
			if !errors.As(validator.Err(), &evalErr) || evalErr.Rule != "rule[0]" || evalErr.Engine != factory.name {
				t.Fatalf("expected evaluation metadata, got %v", validator.Err())
			}
			if evalErr.Trigger != "write #0" || !strings.Contains(evalErr.Error(), "on write #0") {
				t.Fatalf("expected the triggering write in the error, got %q", evalErr.Error())
			}
			if len(handled) != 1 || handled[0] != "rule[0]" {
				t.Fatalf("expected error handler call, got %v", handled)
			}
			if live.HasError() {
				t.Fatalf("rule failures reject without flagging the register")
			}
		})
	}
}

func TestRuleValidatorCompileErrors(t *testing.T) {
	for _, factory := range ruleValidatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			_, err := factory.new([]Rule{{Name: "broken", Expr: "next.bits &&& 1"}})
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) {
				t.Fatalf("expected EvaluationError, got %v", err)
			}
			if evalErr.Rule != "broken" || evalErr.Expr != "next.bits &&& 1" {
				t.Fatalf("unexpected metadata %+v", evalErr)
			}
		})
	}
}

func TestRuleValidatorSharesProgramCache(t *testing.T) {
	cache := NewMemoryProgramCache()
	rules := []Rule{{Expr: "popcount(changed) == 1"}}
	for _, factory := range ruleValidatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			before := cache.Len()
			for i := 0; i < 2; i++ {
				if _, err := factory.new(rules, RuleWithProgramCache(cache)); err != nil {
					t.Fatalf("compile rules: %v", err)
				}
			}
			if cache.Len() != before+1 {
				t.Fatalf("expected one cached program, got %d", cache.Len()-before)
			}
		})
	}
}

func TestNewRuleValidatorRequiresEvaluator(t *testing.T) {
	if _, err := NewRuleValidator(nil, nil); !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}
	if !jsEvaluatorAvailable() {
		if _, err := NewJSRuleValidator(nil); !errors.Is(err, ErrNoEvaluator) {
			t.Fatalf("expected ErrNoEvaluator without js_eval, got %v", err)
		}
	}
}

func TestChainStopsAtFirstRejection(t *testing.T) {
	var order []string
	step := func(name string, accept bool) Validator {
		return ValidatorFunc(func(PriorView, *Proposal) bool {
			order = append(order, name)
			return accept
		})
	}
	live := NewLive(WithValidator(Chain(step("a", true), nil, step("b", false), step("c", true))))
	if live.Set(0) {
		t.Fatalf("expected rejection")
	}
	if len(order) != 2 || order[1] != "b" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestRuleFunctionArgumentErrors(t *testing.T) {
	registry := RuleFunctions()
	if _, err := registry.Call("isSet", uint64(1)); err == nil {
		t.Fatalf("expected arity error")
	}
	if _, err := registry.Call("isSet", "x", 1); err == nil {
		t.Fatalf("expected mask type error")
	}
	if _, err := registry.Call("bit", int64(MaxItems)); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if got, err := registry.Call("popcount", float64(7)); err != nil || got != int64(3) {
		t.Fatalf("expected float masks to be accepted, got %v %v", got, err)
	}
	if err := registry.Register("isSet", func(...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
