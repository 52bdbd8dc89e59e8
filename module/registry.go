package module

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/databroker/errors"
	"github.com/wippyai/databroker/option"
	"github.com/wippyai/databroker/resource"
	"github.com/wippyai/databroker/token"
)

// Registry maps module names to descriptors. It is safe for concurrent use
// and is normally shared by every session of a process.
type Registry struct {
	modules    map[string]*Descriptor
	metrics    *Metrics
	loader     *WASMLoader
	wasmCfg    *WASMConfig
	searchPath []string
	mu         sync.RWMutex
	loaderMu   sync.Mutex
	closed     bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSearchPath sets the directories searched for <name>.wasm on a miss.
func WithSearchPath(dirs ...string) RegistryOption {
	return func(r *Registry) {
		r.searchPath = append([]string(nil), dirs...)
	}
}

// WithMetrics records dispatch metrics into m.
func WithMetrics(m *Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithWASMConfig configures the runtime used for dynamic modules.
func WithWASMConfig(cfg WASMConfig) RegistryOption {
	return func(r *Registry) {
		r.wasmCfg = &cfg
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{modules: make(map[string]*Descriptor)}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register adds a module. Names are unique.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return errors.New(errors.PhaseDispatch, errors.KindRegistration).
			Detail("module has no name").Build()
	}
	if d.Entry == nil {
		return errors.New(errors.PhaseDispatch, errors.KindRegistration).
			Name(d.Name).Detail("module has no entry").Build()
	}
	for i, k := range d.Keys {
		if k.Direction != resource.DirIn && k.Direction != resource.DirOut {
			return errors.New(errors.PhaseDispatch, errors.KindBadDirection).
				Name(d.Name).Detail("key %c has no direction", k.Flag).Build()
		}
		for _, prev := range d.Keys[:i] {
			if prev.Flag == k.Flag {
				return errors.New(errors.PhaseDispatch, errors.KindRegistration).
					Name(d.Name).Detail("key %c declared twice", k.Flag).Build()
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New(errors.PhaseDispatch, errors.KindRegistration).
			Name(d.Name).Detail("registry is closed").Build()
	}
	if _, exists := r.modules[d.Name]; exists {
		return errors.New(errors.PhaseDispatch, errors.KindRegistration).
			Name(d.Name).Detail("module already registered").Build()
	}
	d.Keys = append([]Key(nil), d.Keys...)
	r.modules[d.Name] = &d
	r.metrics.setLoaded(len(r.modules))
	Logger().Debug("module registered", zap.String("module", d.Name), zap.Bool("dynamic", d.Dynamic))
	return nil
}

// Unregister removes a module and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[name]; !ok {
		return false
	}
	delete(r.modules, name)
	r.metrics.setLoaded(len(r.modules))
	return true
}

// Has reports whether name is registered, without consulting the search path.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.modules[name]
	return ok
}

// List returns all registered descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	out := make([]Descriptor, 0, len(r.modules))
	for _, d := range r.modules {
		out = append(out, *d)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a module, loading <name>.wasm from the search path on a miss.
func (r *Registry) Lookup(ctx context.Context, name string) (*Descriptor, error) {
	r.mu.RLock()
	d, ok := r.modules[name]
	closed := r.closed
	r.mu.RUnlock()
	if ok {
		return d, nil
	}
	if closed || len(r.searchPath) == 0 {
		return nil, errors.ModuleNotFound(name)
	}

	l, err := r.wasm(ctx)
	if err != nil {
		return nil, err
	}
	found, ok, err := l.Find(ctx, name, r.searchPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.ModuleNotFound(name)
	}
	if err := r.Register(found); err != nil && !r.Has(name) {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modules[name], nil
}

// Call runs a module against h. A dispatch failure returns StatusDispatch
// and an error; otherwise the module's status is returned unchanged.
// Files the call registers for path arguments are destroyed on return.
func (r *Registry) Call(ctx context.Context, h Host, name string, mode Mode, opts option.List) (int, error) {
	d, err := r.Lookup(ctx, name)
	if err != nil {
		if errors.IsKind(err, errors.KindModuleNotFound) {
			r.metrics.recordMiss()
		}
		return StatusDispatch, err
	}

	log := h.Logger().With(zap.String("module", name), zap.Stringer("mode", mode))
	switch mode {
	case ModeExist:
		return StatusOK, nil
	case ModePurpose:
		log.Info(d.Purpose)
		return StatusOK, nil
	}

	if mode == ModeRun && len(opts) == 1 && opts[0].Flag == option.FlagSynopsis && opts[0].Arg == "" {
		mode = ModeSynopsis
	}

	args := &Args{Options: opts.Clone()}
	if mode == ModeRun {
		err := bind(h, d, args)
		defer release(h, args)
		if err != nil {
			return StatusDispatch, err
		}
	}

	log.Debug("calling module", zap.Int("options", len(args.Options)), zap.Int("bindings", len(args.Bindings)))
	start := time.Now()
	status := d.Entry(ctx, h, mode, args)
	r.metrics.recordCall(name, status, time.Since(start))
	if status != StatusOK {
		log.Debug("module returned", zap.Int("status", status))
	}
	return status, nil
}

// Close releases runtime-loaded modules. Static registrations stay
// listed but lookups no longer consult the search path.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	for name, d := range r.modules {
		if d.Dynamic {
			delete(r.modules, name)
		}
	}
	r.metrics.setLoaded(len(r.modules))
	r.mu.Unlock()

	r.loaderMu.Lock()
	defer r.loaderMu.Unlock()
	if r.loader == nil {
		return nil
	}
	err := r.loader.Close(ctx)
	r.loader = nil
	return err
}

func (r *Registry) wasm(ctx context.Context) (*WASMLoader, error) {
	r.loaderMu.Lock()
	defer r.loaderMu.Unlock()
	if r.loader != nil {
		return r.loader, nil
	}
	l, err := NewWASMLoaderWithConfig(ctx, r.wasmCfg)
	if err != nil {
		return nil, err
	}
	r.loader = l
	return l, nil
}

// bind resolves every keyed option argument. Tokens bind to the object they
// name. Input paths sharing a flag become one multi-file object; an output
// path becomes a single-file object.
func bind(h Host, d *Descriptor, args *Args) error {
	var order []byte
	paths := make(map[byte][]int)

	for i, o := range args.Options {
		k, ok := d.KeyFor(o.Flag)
		if !ok || o.Arg == "" {
			continue
		}
		if token.Is(o.Arg) {
			id, err := h.DecodeToken(o.Arg)
			if err != nil {
				return err
			}
			if err := fits(h, k, id); err != nil {
				return err
			}
			args.Bindings = append(args.Bindings, Binding{Key: k, Option: i, ID: id})
			continue
		}
		if k.Direction == resource.DirOut {
			id, err := h.Register(resource.Spec{
				Family:    k.Family,
				Direction: resource.DirOut,
				Method:    resource.MethodFile,
				Paths:     []string{o.Arg},
			})
			if err != nil {
				return err
			}
			args.Bindings = append(args.Bindings, Binding{Key: k, Option: i, ID: id, Temporary: true})
			continue
		}
		if _, seen := paths[k.Flag]; !seen {
			order = append(order, k.Flag)
		}
		paths[k.Flag] = append(paths[k.Flag], i)
	}

	for _, flag := range order {
		k, _ := d.KeyFor(flag)
		idx := paths[flag]
		files := make([]string, len(idx))
		for j, i := range idx {
			files[j] = args.Options[i].Arg
		}
		id, err := h.Register(resource.Spec{
			Family:    k.Family,
			Direction: resource.DirIn,
			Method:    resource.MethodFile,
			Paths:     files,
		})
		if err != nil {
			return err
		}
		for _, i := range idx {
			args.Bindings = append(args.Bindings, Binding{Key: k, Option: i, ID: id, Temporary: true})
		}
	}

	sort.SliceStable(args.Bindings, func(i, j int) bool {
		return args.Bindings[i].Option < args.Bindings[j].Option
	})
	return nil
}

// fits checks that the object behind a token can serve key k.
func fits(h Host, k Key, id resource.ID) error {
	obj, err := h.Object(id)
	if err != nil {
		return err
	}
	if obj.Family != k.Family {
		return errors.New(errors.PhaseDispatch, errors.KindBadFamily).
			ID(int(id)).Detail("-%c expects a %v, object is a %v", k.Flag, k.Family, obj.Family).Build()
	}
	if obj.Direction != k.Direction {
		return errors.New(errors.PhaseDispatch, errors.KindBadDirection).
			ID(int(id)).Detail("-%c expects %v, object is %v", k.Flag, k.Direction, obj.Direction).Build()
	}
	return nil
}

func release(h Host, args *Args) {
	done := make(map[resource.ID]bool)
	for _, b := range args.Bindings {
		if !b.Temporary || done[b.ID] {
			continue
		}
		done[b.ID] = true
		if err := h.Destroy(b.ID); err != nil {
			h.Logger().Warn("release call object", zap.Int("id", int(b.ID)), zap.Error(err))
		}
	}
}
