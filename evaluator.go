package multiscreen

import (
	"fmt"
	"time"
)

// EvalContext carries inputs needed when evaluating a pull expression.
type EvalContext struct {
	// Vars is the effective variable map for the scope the expression runs
	// under, weakest ancestor first. Undotted names also appear as top
	// level identifiers in the expression environment.
	Vars map[string]string
	// ScopePath is the scope the expression resolves under.
	ScopePath string
	// Screen is the screen owning ScopePath; derived from it when empty.
	Screen   string
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx EvalContext) withDefaultNow() EvalContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx EvalContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx EvalContext) withDefaultMaps() EvalContext {
	if ctx.Vars == nil {
		ctx.Vars = map[string]string{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx EvalContext) withDefaultScreen() EvalContext {
	if ctx.Screen == "" {
		ctx.Screen = scopeScreen(ctx.ScopePath)
	}
	return ctx
}

func (ctx EvalContext) scopeLabel() string {
	if ctx.ScopePath != "" {
		return ctx.ScopePath
	}
	return RootScopeName
}

// identifierSafe reports whether a variable name can appear as a bare
// expression identifier. Dotted and dashed names stay reachable through the
// vars map and gsv.
func identifierSafe(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Evaluator executes pull expressions against an evaluation context.
type Evaluator interface {
	Evaluate(ctx EvalContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledExpr, error)
}

// CompiledExpr represents a reusable expression program.
type CompiledExpr interface {
	Evaluate(ctx EvalContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*multiscreen.exprEvaluator":
		return "expr"
	case "*multiscreen.celEvaluator":
		return "cel"
	case "*multiscreen.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
