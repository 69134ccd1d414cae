package script

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/milk9111/hsm"
	"github.com/milk9111/hsm/ecs"
	"github.com/milk9111/hsm/internal/logging"
)

// Runtime compiles tengo scripts into state callbacks. A script must
// define onEnter(engine, state, ctx), update(engine, state, ctx),
// onExit(engine, state, ctx) and a guards map of named predicates; the
// dispatch trailer below routes each phase to the right one. The state
// map persists across calls for the lifetime of the compiled script.
type Runtime struct {
	log      *slog.Logger
	load     func(path string) ([]byte, error)
	engine   map[string]tengo.Object
	compiled map[string]*compiledScript
}

const lifecycleDispatchScript = `
if __phase == "enter" {
	onEnter(__engine, __state, __ctx)
} else if __phase == "update" {
	update(__engine, __state, __ctx)
} else if __phase == "exit" {
	onExit(__engine, __state, __ctx)
} else if __phase == "guard" {
	__result = guards[__guard](__engine, __state, __ctx)
}
`

type compiledScript struct {
	path      string
	compiled  *tengo.Compiled
	stateData *tengo.Map
}

// EngineFunc is a host function exposed to scripts through the engine map.
type EngineFunc func(args []any) any

func New(log *slog.Logger, load func(path string) ([]byte, error)) *Runtime {
	if log == nil {
		log = logging.NewNop()
	}
	return &Runtime{
		log:      log,
		load:     load,
		engine:   map[string]tengo.Object{},
		compiled: map[string]*compiledScript{},
	}
}

// Register exposes a host function to scripts as engine.<name>.
func (r *Runtime) Register(name string, fn EngineFunc) {
	r.engine[name] = &tengo.UserFunction{Name: name, Value: func(args ...tengo.Object) (tengo.Object, error) {
		in := make([]any, 0, len(args))
		for _, a := range args {
			in = append(in, objectToAny(a))
		}
		return anyToObject(fn(in)), nil
	}}
}

func (r *Runtime) get(path string) (*compiledScript, error) {
	if cs, ok := r.compiled[path]; ok {
		return cs, nil
	}
	src, err := r.load(path)
	if err != nil {
		return nil, fmt.Errorf("load script %s: %w", path, err)
	}
	full := string(src) + "\n" + lifecycleDispatchScript
	s := tengo.NewScript([]byte(full))
	_ = s.Add("__phase", "")
	_ = s.Add("__guard", "")
	_ = s.Add("__result", false)
	_ = s.Add("__drop", false)
	_ = s.Add("__engine", map[string]any{})
	_ = s.Add("__state", map[string]any{})
	_ = s.Add("__ctx", map[string]any{})
	s.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile script %s: %w", path, err)
	}
	cs := &compiledScript{
		path:      path,
		compiled:  compiled,
		stateData: &tengo.Map{Value: map[string]tengo.Object{}},
	}
	r.compiled[path] = cs
	return cs, nil
}

// Invalidate drops a compiled script so the next callback recompiles it.
// The prefab watcher calls this when a script file changes on disk.
func (r *Runtime) Invalidate(path string) {
	delete(r.compiled, path)
}

func (r *Runtime) runPhase(cs *compiledScript, phase, guard string, ctx hsm.Context) error {
	if err := cs.compiled.Set("__phase", phase); err != nil {
		return err
	}
	if err := cs.compiled.Set("__guard", guard); err != nil {
		return err
	}
	if err := cs.compiled.Set("__result", false); err != nil {
		return err
	}
	if err := cs.compiled.Set("__drop", false); err != nil {
		return err
	}
	if err := cs.compiled.Set("__engine", &tengo.ImmutableMap{Value: r.engine}); err != nil {
		return err
	}
	if err := cs.compiled.Set("__state", cs.stateData); err != nil {
		return err
	}
	ctxMap := &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"subject": &tengo.Int{Value: int64(ctx.Subject)},
		"machine": &tengo.Int{Value: int64(ctx.Machine)},
		"state":   &tengo.Int{Value: int64(ctx.State)},
	}}
	if err := cs.compiled.Set("__ctx", ctxMap); err != nil {
		return err
	}
	return cs.compiled.Run()
}

// EnterHook returns a hook running the script's onEnter.
func (r *Runtime) EnterHook(path string) hsm.HookFunc {
	return r.hook(path, "enter")
}

// ExitHook returns a hook running the script's onExit.
func (r *Runtime) ExitHook(path string) hsm.HookFunc {
	return r.hook(path, "exit")
}

func (r *Runtime) hook(path, phase string) hsm.HookFunc {
	return func(_ *ecs.World, ctx hsm.Context) error {
		cs, err := r.get(path)
		if err != nil {
			return err
		}
		return r.runPhase(cs, phase, "", ctx)
	}
}

// Guard returns a predicate evaluating the named entry of the script's
// guards map. A missing entry is a runtime error from the dispatch, which
// the transition engine treats as a non-match.
func (r *Runtime) Guard(path, name string) hsm.GuardFunc {
	return func(_ *ecs.World, ctx hsm.Context) (bool, error) {
		cs, err := r.get(path)
		if err != nil {
			return false, err
		}
		if err := r.runPhase(cs, "guard", name, ctx); err != nil {
			return false, fmt.Errorf("guard %s in %s: %w", name, path, err)
		}
		return cs.compiled.Get("__result").Bool(), nil
	}
}

// Action returns an action running the script's update once per staged
// context. A script drops its context from the next pass by setting
// __drop = true.
func (r *Runtime) Action(path string) hsm.ActionFunc {
	return func(_ *ecs.World, ctxs []hsm.Context) []hsm.Context {
		cs, err := r.get(path)
		if err != nil {
			r.log.Warn("script action failed to load", "path", path, "err", err)
			return ctxs
		}
		kept := ctxs[:0]
		for _, ctx := range ctxs {
			if err := r.runPhase(cs, "update", "", ctx); err != nil {
				r.log.Warn("script update failed", "path", path, "err", err)
				kept = append(kept, ctx)
				continue
			}
			if !cs.compiled.Get("__drop").Bool() {
				kept = append(kept, ctx)
			}
		}
		return kept
	}
}

func objectToAny(obj tengo.Object) any {
	if obj == nil {
		return nil
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	case *tengo.Int:
		return int(v.Value)
	case *tengo.Float:
		return v.Value
	case *tengo.Bool:
		return !v.IsFalsy()
	case *tengo.Array:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, objectToAny(item))
		}
		return out
	case *tengo.Map:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.ImmutableMap:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.Undefined:
		return nil
	default:
		return strings.Trim(v.String(), "\"")
	}
}

func anyToObject(v any) tengo.Object {
	switch t := v.(type) {
	case nil:
		return tengo.UndefinedValue
	case bool:
		if t {
			return tengo.TrueValue
		}
		return tengo.FalseValue
	case int:
		return &tengo.Int{Value: int64(t)}
	case int64:
		return &tengo.Int{Value: t}
	case float64:
		return &tengo.Float{Value: t}
	case string:
		return &tengo.String{Value: t}
	case []any:
		out := make([]tengo.Object, 0, len(t))
		for _, item := range t {
			out = append(out, anyToObject(item))
		}
		return &tengo.Array{Value: out}
	case map[string]any:
		out := make(map[string]tengo.Object, len(t))
		for k, item := range t {
			out[k] = anyToObject(item)
		}
		return &tengo.Map{Value: out}
	default:
		return &tengo.String{Value: fmt.Sprintf("%v", t)}
	}
}
