package bitstate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoEvaluator = errors.New("bitstate: evaluator not configured")
	// ErrRuleResult reports a rule that evaluated to something other than a
	// boolean.
	ErrRuleResult = errors.New("bitstate: rule must evaluate to a boolean")
)

// EvaluationError describes a rule that failed to compile or evaluate.
type EvaluationError struct {
	Engine string
	Expr   string
	Rule   string
	// Trigger names what opened the round: the written item and/or the
	// signaled items, by catalog name when one is configured. It is empty
	// for compile errors.
	Trigger string
	Err     error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "bitstate: %s rule %q", e.Engine, e.Rule)
	if e.Expr != "" {
		fmt.Fprintf(&b, " expr=%q", e.Expr)
	}
	if e.Trigger != "" {
		fmt.Fprintf(&b, " on %s", e.Trigger)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// wrapEvaluatorError tags engine-level failures that are not tied to a rule.
func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) || strings.HasPrefix(err.Error(), "bitstate:") {
		return err
	}
	return fmt.Errorf("bitstate: %s evaluator: %w", engine, err)
}

// wrapEvaluationError attaches rule metadata to err, filling only the fields
// an inner EvaluationError left empty.
func wrapEvaluationError(engine, expr, rule string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, Rule: rule, Err: err}
	}
	if evalErr.Engine == "" {
		evalErr.Engine = engine
	}
	if evalErr.Expr == "" {
		evalErr.Expr = expr
	}
	if evalErr.Rule == "" {
		evalErr.Rule = rule
	}
	return evalErr
}

func withTrigger(err error, trigger string) error {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) && evalErr.Trigger == "" {
		evalErr.Trigger = trigger
	}
	return err
}

// describeTrigger renders the cause of a round: "write power",
// "signal alarm", or both joined by " + " when signals arrived during a
// direct write.
func describeTrigger(next *Proposal, catalog *Catalog) string {
	var parts []string
	if recent := next.Recent(); recent != NoRecent {
		parts = append(parts, "write "+itemLabel(catalog, recent))
	}
	if signals := next.Signals(); signals != 0 {
		labels := make([]string, 0, signals.Count())
		for i := range signals.Indices() {
			labels = append(labels, itemLabel(catalog, i))
		}
		parts = append(parts, "signal "+strings.Join(labels, ","))
	}
	return strings.Join(parts, " + ")
}

func itemLabel(catalog *Catalog, i int) string {
	if catalog == nil {
		return "#" + strconv.Itoa(i)
	}
	return catalog.Name(i)
}

// evaluateRule runs a compiled rule and reports whether it accepted.
func evaluateRule(engine string, rule compiledRule, ctx RuleContext, logger EvaluatorLogger) (bool, error) {
	ctx.Rule = rule.name
	start := time.Now()
	value, err := rule.program.Evaluate(ctx)
	if err == nil {
		if _, ok := value.(bool); !ok {
			err = fmt.Errorf("%w: got %T", ErrRuleResult, value)
		}
	}
	err = wrapEvaluationError(engine, rule.expr, rule.name, err)
	accepted := err == nil && value.(bool)
	logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Rule:     rule.name,
		Expr:     rule.expr,
		Accepted: accepted,
		Duration: time.Since(start),
		Err:      err,
	})
	return accepted, err
}

// engineNamer is implemented by the built-in evaluators.
type engineNamer interface {
	engine() string
}

func evaluatorEngineName(e Evaluator) string {
	if named, ok := e.(engineNamer); ok {
		return named.engine()
	}
	return "custom"
}
