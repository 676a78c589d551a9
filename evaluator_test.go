package multiscreen

import (
	"errors"
	"fmt"
	"testing"
)

// evaluatorFactories enumerates the engines every expression test runs
// against. The js factory yields nil unless the js_eval build tag is on;
// subtests skip it then.
var evaluatorFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Evaluator
}{
	{"expr", func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry))
	}},
	{"cel", func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry))
	}},
	{"js", func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
		return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry))
	}},
}

// countingCache is a ProgramCache that tallies traffic.
type countingCache struct {
	entries map[string]any
	hits    int
	sets    int
}

func (c *countingCache) Get(key string) (any, bool) {
	value, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return value, ok
}

func (c *countingCache) Set(key string, value any) {
	if c.entries == nil {
		c.entries = map[string]any{}
	}
	c.entries[key] = value
	c.sets++
}

func pullContext() EvalContext {
	return EvalContext{
		ScopePath: "Godzilla.Overrides",
		Vars: map[string]string{
			"fps":                   "48",
			"format":                "UHD_4K",
			"label":                 "GODZILLA // 4K",
			"Overrides.Write1.file": "/out/godzilla/####.exr",
		},
	}
}

func TestEvaluatorsResolveScopeVariables(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skip("engine not built in")
			}

			for _, tc := range []struct {
				expr string
				want string
			}{
				{"fps", "48"},
				{"format", "UHD_4K"},
				{`vars["Overrides.Write1.file"]`, "/out/godzilla/####.exr"},
				{"screen", "Godzilla"},
				{"scope_path", "Godzilla.Overrides"},
			} {
				got, err := evaluator.Evaluate(pullContext(), tc.expr)
				if err != nil {
					t.Fatalf("evaluate %q: %v", tc.expr, err)
				}
				if got != tc.want {
					t.Fatalf("evaluate %q = %v, want %q", tc.expr, got, tc.want)
				}
			}
		})
	}
}

func TestEvaluatorsCallRegisteredFunctions(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("frame_pad", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("frame_pad wants one argument")
		}
		return fmt.Sprintf("%04d", args[0]), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, registry)
			if evaluator == nil {
				t.Skip("engine not built in")
			}

			got, err := evaluator.Evaluate(pullContext(), `call("frame_pad", 7)`)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got != "0007" {
				t.Fatalf("frame_pad = %v", got)
			}
		})
	}
}

func TestEvaluatorsSurfaceFunctionErrors(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("frame_check", func(args ...any) (any, error) {
		return nil, fmt.Errorf("frame out of range")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, registry)
			if evaluator == nil {
				t.Skip("engine not built in")
			}
			if _, err := evaluator.Evaluate(pullContext(), `call("frame_check", 7)`); err == nil {
				t.Fatalf("function error swallowed")
			}
		})
	}
}

func TestEvaluatorsRejectBadExpressions(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skip("engine not built in")
			}
			if _, err := evaluator.Evaluate(pullContext(), ""); err == nil {
				t.Fatalf("empty expression accepted")
			}
			if _, err := evaluator.Evaluate(pullContext(), `fps +`); err == nil {
				t.Fatalf("broken expression accepted")
			}
		})
	}
}

func TestEvaluatorProgramCacheReuse(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := &countingCache{}
			evaluator := factory.new(cache, nil)
			if evaluator == nil {
				t.Skip("engine not built in")
			}

			for i := 0; i < 3; i++ {
				if _, err := evaluator.Evaluate(pullContext(), "fps"); err != nil {
					t.Fatalf("evaluate #%d: %v", i, err)
				}
			}
			if cache.sets != 1 {
				t.Fatalf("compiled %d times, want 1", cache.sets)
			}
			if cache.hits < 2 {
				t.Fatalf("cache hits = %d, want at least 2", cache.hits)
			}
		})
	}
}

func TestEvaluatorCompiledExprTracksContext(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skip("engine not built in")
			}

			compiled, err := evaluator.Compile("fps")
			if err != nil {
				t.Fatalf("compile: %v", err)
			}

			ctx := pullContext()
			got, err := compiled.Evaluate(ctx)
			if err != nil || got != "48" {
				t.Fatalf("first run = %v, %v", got, err)
			}

			ctx.Vars["fps"] = "30"
			got, err = compiled.Evaluate(ctx)
			if err != nil || got != "30" {
				t.Fatalf("second run = %v, %v", got, err)
			}
		})
	}
}

func TestEvaluationErrorMetadata(t *testing.T) {
	evaluator := NewExprEvaluator()
	_, err := evaluator.Evaluate(pullContext(), "fps +")
	if err == nil {
		t.Fatalf("broken expression accepted")
	}

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected *EvaluationError, got %T: %v", err, err)
	}
	if evalErr.Engine != "expr" || evalErr.Expr != "fps +" {
		t.Fatalf("metadata lost: %+v", evalErr)
	}
}

func TestFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	fn := func(args ...any) (any, error) { return "ok", nil }

	if err := registry.Register("Pad", fn); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Names are case-insensitive: one spelling, one slot.
	if err := registry.Register("pad", fn); err == nil {
		t.Fatalf("duplicate name accepted")
	}
	if err := registry.Register("", fn); err == nil {
		t.Fatalf("empty name accepted")
	}
	if err := registry.Register("nilfn", nil); err == nil {
		t.Fatalf("nil function accepted")
	}

	if got, err := registry.Call("PAD"); err != nil || got != "ok" {
		t.Fatalf("call = %v, %v", got, err)
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("unregistered call accepted")
	}

	clone := registry.Clone()
	if err := clone.Register("extra", fn); err != nil {
		t.Fatalf("clone register: %v", err)
	}
	if _, err := registry.Call("extra"); err == nil {
		t.Fatalf("clone mutation leaked into the original")
	}
	if names := clone.Names(); len(names) != 2 || names[0] != "extra" || names[1] != "pad" {
		t.Fatalf("names = %v", names)
	}
}
