package multiscreen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgeantonopoulos/Nuke/pkg/journal"
)

// ErrNoEvaluator reports that no expression engine could be constructed.
var ErrNoEvaluator = errors.New("multiscreen: evaluator not configured")

// Session wires one variable store, resolver, screen registry, and render
// controller over a host graph, and owns pull expression evaluation. It is
// the root object an embedding application holds.
type Session struct {
	store      *Store
	resolver   *Resolver
	registry   *Registry
	controller *Controller
	host       HostGraph
	logger     Logger
	emitter    *journal.Emitter

	engine       string
	evaluator    Evaluator
	programCache ProgramCache
	functions    *FunctionRegistry
	evalLogger   EvaluatorLogger
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	logger         Logger
	hooks          journal.Hooks
	journalCfg     journal.Config
	journalCfgSet  bool
	engine         string
	evaluator      Evaluator
	programCache   ProgramCache
	functions      *FunctionRegistry
	evalLogger     EvaluatorLogger
	resolverOpts   []ResolverOption
	registryOpts   []RegistryOption
	controllerOpts []ControllerOption
}

func applySessionOptions(opts []SessionOption) sessionConfig {
	cfg := sessionConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithLogger routes session, registry, and controller diagnostics to logger.
func WithLogger(logger Logger) SessionOption {
	return func(cfg *sessionConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithJournalHooks attaches lifecycle hooks. Nil entries are dropped.
func WithJournalHooks(hooks ...journal.Hook) SessionOption {
	normalized := make(journal.Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			normalized = append(normalized, hook)
		}
	}
	return func(cfg *sessionConfig) {
		cfg.hooks = append(cfg.hooks, normalized...)
	}
}

// WithJournalConfig adjusts journal emission (enable switch, channel).
// Without it, attaching hooks enables emission on the default channel.
func WithJournalConfig(jcfg journal.Config) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.journalCfg = jcfg
		cfg.journalCfgSet = true
	}
}

// WithEngine selects the expression engine by name: "expr" (default),
// "cel", or "js" (requires the js_eval build tag). The engine is built
// lazily on first evaluation so it sees the session's function registry.
func WithEngine(name string) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.engine = name
	}
}

// WithEvaluator installs a fully constructed evaluator. Callers wiring their
// own engine also wire its function registry; the session's gsv helper is
// only registered automatically for engines the session builds.
func WithEvaluator(evaluator Evaluator) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.evaluator = evaluator
	}
}

// WithProgramCache registers a compiled program cache for session-built
// engines.
func WithProgramCache(cache ProgramCache) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.programCache = cache
	}
}

// WithFunctions seeds the session's function registry with a clone of
// registry.
func WithFunctions(registry *FunctionRegistry) SessionOption {
	return func(cfg *sessionConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithEvaluatorLogger attaches an evaluator logger to the session.
func WithEvaluatorLogger(logger EvaluatorLogger) SessionOption {
	return func(cfg *sessionConfig) {
		if logger == nil {
			cfg.evalLogger = noopEvaluatorLogger{}
			return
		}
		cfg.evalLogger = logger
	}
}

// WithResolverOptions forwards options to the session's resolver.
func WithResolverOptions(opts ...ResolverOption) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.resolverOpts = append(cfg.resolverOpts, opts...)
	}
}

// WithRegistryOptions forwards options to the session's screen registry.
func WithRegistryOptions(opts ...RegistryOption) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.registryOpts = append(cfg.registryOpts, opts...)
	}
}

// WithControllerOptions forwards options to the session's render controller.
func WithControllerOptions(opts ...ControllerOption) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.controllerOpts = append(cfg.controllerOpts, opts...)
	}
}

// NewSession builds a session over host. A nil host gets a fresh MemoryHost;
// a MemoryHost without an EvalFunc is wired to the session's own pull
// evaluator so expression targets work out of the box.
func NewSession(host HostGraph, opts ...SessionOption) *Session {
	cfg := applySessionOptions(opts)
	if host == nil {
		host = NewMemoryHost()
	}

	logger := cfg.logger
	if logger == nil {
		logger = noopLogger{}
	}
	evalLogger := cfg.evalLogger
	if evalLogger == nil {
		evalLogger = noopEvaluatorLogger{}
	}
	functions := cfg.functions
	if functions == nil {
		functions = NewFunctionRegistry()
	}
	journalCfg := cfg.journalCfg
	if !cfg.journalCfgSet && len(cfg.hooks) > 0 {
		journalCfg = journal.Config{Enabled: true}
	}
	emitter := journal.NewEmitter(cfg.hooks, journalCfg)

	store := NewStore()
	resolver := NewResolver(store, cfg.resolverOpts...)

	registryOpts := append([]RegistryOption{
		WithRegistryLogger(logger),
		WithRegistryJournal(emitter),
	}, cfg.registryOpts...)
	registry := NewRegistry(store, host, registryOpts...)

	controllerOpts := append([]ControllerOption{
		WithControllerLogger(logger),
		WithControllerJournal(emitter),
	}, cfg.controllerOpts...)
	controller := NewController(registry, controllerOpts...)

	s := &Session{
		store:        store,
		resolver:     resolver,
		registry:     registry,
		controller:   controller,
		host:         host,
		logger:       logger,
		emitter:      emitter,
		engine:       cfg.engine,
		evaluator:    cfg.evaluator,
		programCache: cfg.programCache,
		functions:    functions,
		evalLogger:   evalLogger,
	}

	// Callers may have seeded their own gsv; theirs wins.
	if err := s.functions.Register("gsv", s.gsvFunction); err != nil {
		s.logger.Debugf("keeping caller-supplied gsv: %v", err)
	}

	if mem, ok := host.(*MemoryHost); ok && mem.EvalFunc == nil {
		mem.EvalFunc = s.EvalPullActive
	}
	return s
}

// Store exposes the session's variable store.
func (s *Session) Store() *Store { return s.store }

// Resolver exposes the session's scope resolver.
func (s *Session) Resolver() *Resolver { return s.resolver }

// Registry exposes the session's screen registry.
func (s *Session) Registry() *Registry { return s.registry }

// Controller exposes the session's render controller.
func (s *Session) Controller() *Controller { return s.controller }

// Host exposes the underlying host graph.
func (s *Session) Host() HostGraph { return s.host }

// Functions exposes the live registry session-built engines clone from.
func (s *Session) Functions() *FunctionRegistry { return s.functions }

// SetVariable writes value into scopePath's local map. Push targets whose
// resolution changed update before control returns.
func (s *Session) SetVariable(scopePath, key, value string) error {
	var oldValue string
	if prev, err := s.store.Local(scopePath, key); err == nil {
		oldValue = prev
	}
	if err := s.store.Set(scopePath, key, value); err != nil {
		return err
	}
	s.registry.deliver()
	s.emit(journal.BuildVariableSetEvent(journal.EventInput{
		Screen:   scopeScreen(scopePath),
		Path:     joinPath(scopePath, key),
		OldValue: oldValue,
		NewValue: value,
	}))
	return nil
}

// RemoveVariable deletes a local value from scopePath.
func (s *Session) RemoveVariable(scopePath, key string) error {
	oldValue, err := s.store.Local(scopePath, key)
	if err != nil {
		return err
	}
	if err := s.store.Remove(scopePath, key); err != nil {
		return err
	}
	s.registry.deliver()
	s.emit(journal.BuildVariableRemovedEvent(journal.EventInput{
		Screen:   scopeScreen(scopePath),
		Path:     joinPath(scopePath, key),
		OldValue: oldValue,
	}))
	return nil
}

// Lookup resolves a full variable path. When the first segment names a
// registered screen the remainder resolves under that screen's scope;
// otherwise the whole path resolves under the active scope. This is the
// rule gsv follows inside pull expressions.
func (s *Session) Lookup(path string) (string, error) {
	if head, rest, found := cutPath(path); found && rest != "" && s.registry.Has(head) {
		return s.resolver.Resolve(head, rest)
	}
	return s.resolver.Resolve(s.registry.activeScope(), path)
}

func (s *Session) gsvFunction(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("multiscreen: gsv expects one path argument, got %d", len(args))
	}
	path, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("multiscreen: gsv path must be a string, got %T", args[0])
	}
	return s.Lookup(path)
}

// EvalPull evaluates a pull expression under scopePath with the scope's
// effective variables in the environment.
func (s *Session) EvalPull(scopePath, expr string) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	evaluator, err := s.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	vars, err := s.resolver.Effective(scopePath)
	if err != nil {
		return nil, err
	}
	ctx := EvalContext{Vars: vars, ScopePath: scopePath}.withDefaultNow().withDefaultMaps().withDefaultScreen()
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapEvaluationError(engine, expr, ctx.scopeLabel(), evalErr)
	s.evalLogger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Scope:    ctx.scopeLabel(),
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

// EvalPullActive evaluates expr under the active scope and renders the
// result as a string, the form host targets consume.
func (s *Session) EvalPullActive(expr string) (string, error) {
	value, err := s.EvalPull(s.registry.activeScope(), expr)
	if err != nil {
		return "", err
	}
	return stringify(value), nil
}

func (s *Session) resolveEvaluator() (Evaluator, error) {
	if s.evaluator != nil {
		return s.evaluator, nil
	}
	built, err := s.buildEngine()
	if err != nil {
		return nil, err
	}
	s.evaluator = built
	return built, nil
}

func (s *Session) buildEngine() (Evaluator, error) {
	switch s.engine {
	case "", "expr":
		var exprOpts []ExprEvaluatorOption
		if s.programCache != nil {
			exprOpts = append(exprOpts, ExprWithProgramCache(s.programCache))
		}
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(s.functions))
		return NewExprEvaluator(exprOpts...), nil
	case "cel":
		var celOpts []CELEvaluatorOption
		if s.programCache != nil {
			celOpts = append(celOpts, CELWithProgramCache(s.programCache))
		}
		celOpts = append(celOpts, CELWithFunctionRegistry(s.functions))
		return NewCELEvaluator(celOpts...), nil
	case "js":
		var jsOpts []JSEvaluatorOption
		if s.programCache != nil {
			jsOpts = append(jsOpts, JSWithProgramCache(s.programCache))
		}
		jsOpts = append(jsOpts, JSWithFunctionRegistry(s.functions))
		evaluator := NewJSEvaluator(jsOpts...)
		if evaluator == nil {
			return nil, fmt.Errorf("%w: js engine requires the js_eval build tag", ErrNoEvaluator)
		}
		return evaluator, nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrNoEvaluator, s.engine)
	}
}

func (s *Session) emit(event journal.Event) {
	if s.emitter == nil || !s.emitter.Enabled() {
		return
	}
	if err := s.emitter.Emit(context.Background(), event); err != nil {
		s.logger.Warnf("journal emit failed for %s: %v", event.Verb, err)
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
