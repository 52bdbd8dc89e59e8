package module

import (
	"context"
	stderrors "errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/databroker/errors"
	"github.com/wippyai/databroker/option"
	"github.com/wippyai/databroker/payload"
	"github.com/wippyai/databroker/record"
	"github.com/wippyai/databroker/resource"
)

const (
	// HostModule is the import namespace dynamic modules link against.
	HostModule = "broker"
	// EntryPrefix prefixes the module name to form the exported entry.
	EntryPrefix = "broker_"
	// Extension is the file suffix looked up on the search path.
	Extension = ".wasm"
)

// Host call result codes. Non-negative results are successful values.
const (
	codeFailed int32 = -1 - iota
	codeNoCall
	codeObjectNotFound
	codeWrongAccessOrder
	codeReadAfterEnd
	codeBadDirection
	codeBadFamily
	codeRange
)

// DefaultKeys are the keys given to every dynamic module.
var DefaultKeys = []Key{
	{Flag: option.FlagInput, Family: payload.FamilyDataset, Direction: resource.DirIn},
	{Flag: option.FlagOutput, Family: payload.FamilyDataset, Direction: resource.DirOut},
}

// WASMConfig holds configuration for the dynamic module runtime.
type WASMConfig struct {
	// MemoryLimitPages caps each instance's memory in 64KB pages.
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// WASMLoader compiles core WASM modules and turns them into descriptors.
// Every call runs in a fresh anonymous instance.
type WASMLoader struct {
	rt       wazero.Runtime
	compiled []wazero.CompiledModule
	mu       sync.Mutex
}

// NewWASMLoader creates a loader with default configuration.
func NewWASMLoader(ctx context.Context) (*WASMLoader, error) {
	return NewWASMLoaderWithConfig(ctx, nil)
}

// NewWASMLoaderWithConfig creates a loader and instantiates the host module.
func NewWASMLoaderWithConfig(ctx context.Context, cfg *WASMConfig) (*WASMLoader, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	builder := rt.NewHostModuleBuilder(HostModule)
	for _, f := range hostFuncs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, f.params, f.results).
			Export(f.name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Load("instantiate host module", err)
	}
	return &WASMLoader{rt: rt}, nil
}

// Load compiles wasm and returns a descriptor for the module called name.
// The module must export broker_<name> taking the mode and returning the status.
func (l *WASMLoader) Load(ctx context.Context, name string, wasm []byte) (Descriptor, error) {
	compiled, err := l.rt.CompileModule(ctx, wasm)
	if err != nil {
		return Descriptor{}, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Name(name).Detail("compile").Cause(err).Build()
	}

	export := EntryPrefix + name
	def, ok := compiled.ExportedFunctions()[export]
	if !ok {
		_ = compiled.Close(ctx)
		return Descriptor{}, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Name(name).Detail("missing export %s", export).Build()
	}
	if !isEntrySignature(def) {
		_ = compiled.Close(ctx)
		return Descriptor{}, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Name(name).Detail("%s must be (i32) -> i32", export).Build()
	}

	l.mu.Lock()
	l.compiled = append(l.compiled, compiled)
	l.mu.Unlock()

	Logger().Debug("wasm module compiled", zap.String("module", name), zap.Int("bytes", len(wasm)))
	return Descriptor{
		Name:    name,
		Purpose: "dynamic module " + name,
		Keys:    DefaultKeys,
		Entry:   l.entry(compiled, export),
		Dynamic: true,
	}, nil
}

// LoadFile loads path; the module name is the file name without .wasm.
func (l *WASMLoader) LoadFile(ctx context.Context, path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, errors.IO(errors.PhaseLoad, path, err)
	}
	return l.Load(ctx, strings.TrimSuffix(filepath.Base(path), Extension), data)
}

// Find looks for <name>.wasm in dirs, in order.
func (l *WASMLoader) Find(ctx context.Context, name string, dirs []string) (Descriptor, bool, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return Descriptor{}, false, nil
	}
	for _, dir := range dirs {
		path := filepath.Join(dir, name+Extension)
		data, err := os.ReadFile(path)
		if stderrors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Descriptor{}, false, errors.IO(errors.PhaseLoad, path, err)
		}
		d, err := l.Load(ctx, name, data)
		if err != nil {
			return Descriptor{}, false, err
		}
		return d, true, nil
	}
	return Descriptor{}, false, nil
}

// Close closes the runtime together with every compiled module.
func (l *WASMLoader) Close(ctx context.Context) error {
	l.mu.Lock()
	l.compiled = nil
	l.mu.Unlock()
	return l.rt.Close(ctx)
}

// LoadWASM loads one module file into the registry.
func (r *Registry) LoadWASM(ctx context.Context, path string) error {
	l, err := r.wasm(ctx)
	if err != nil {
		return err
	}
	d, err := l.LoadFile(ctx, path)
	if err != nil {
		return err
	}
	return r.Register(d)
}

// LoadDir loads every .wasm file in dir and returns how many were registered.
func (r *Registry) LoadDir(ctx context.Context, dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+Extension))
	if err != nil {
		return 0, errors.IO(errors.PhaseLoad, dir, err)
	}
	n := 0
	for _, path := range matches {
		if err := r.LoadWASM(ctx, path); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func isEntrySignature(def api.FunctionDefinition) bool {
	p, res := def.ParamTypes(), def.ResultTypes()
	return len(p) == 1 && p[0] == api.ValueTypeI32 && len(res) == 1 && res[0] == api.ValueTypeI32
}

func (l *WASMLoader) entry(compiled wazero.CompiledModule, export string) Entry {
	return func(ctx context.Context, h Host, mode Mode, args *Args) int {
		ctx = context.WithValue(ctx, callKey{}, &wasmCall{host: h, args: args})
		mod, err := l.rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
		if err != nil {
			h.Logger().Error("instantiate wasm module", zap.String("export", export), zap.Error(err))
			return StatusFailed
		}
		defer mod.Close(ctx)

		res, err := mod.ExportedFunction(export).Call(ctx, api.EncodeI32(int32(mode)))
		if err != nil {
			h.Logger().Error("wasm module trapped", zap.String("export", export), zap.Error(err))
			return StatusFailed
		}
		return int(api.DecodeI32(res[0]))
	}
}

type callKey struct{}

// wasmCall is the per-call state host functions work on.
type wasmCall struct {
	host Host
	args *Args
	cur  record.Record
	out  []float64
}

func callFrom(ctx context.Context) *wasmCall {
	c, _ := ctx.Value(callKey{}).(*wasmCall)
	return c
}

func codeFor(err error) int32 {
	switch errors.KindOf(err) {
	case errors.KindObjectNotFound:
		return codeObjectNotFound
	case errors.KindWrongAccessOrder:
		return codeWrongAccessOrder
	case errors.KindReadAfterEnd:
		return codeReadAfterEnd
	case errors.KindBadDirection:
		return codeBadDirection
	case errors.KindBadFamily:
		return codeBadFamily
	}
	return codeFailed
}

type hostFunc struct {
	fn      api.GoModuleFunc
	name    string
	params  []api.ValueType
	results []api.ValueType
}

var (
	i32 = api.ValueTypeI32
	f64 = api.ValueTypeF64
)

// hostFuncs is the broker import namespace. Every function answers
// codeNoCall when invoked outside a dispatched call.
var hostFuncs = []hostFunc{
	{name: "option_count", results: []api.ValueType{i32}, fn: func(ctx context.Context, _ api.Module, stack []uint64) {
		c := callFrom(ctx)
		if c == nil {
			stack[0] = api.EncodeI32(codeNoCall)
			return
		}
		stack[0] = api.EncodeI32(int32(len(c.args.Options)))
	}},
	{name: "binding_count", results: []api.ValueType{i32}, fn: func(ctx context.Context, _ api.Module, stack []uint64) {
		c := callFrom(ctx)
		if c == nil {
			stack[0] = api.EncodeI32(codeNoCall)
			return
		}
		stack[0] = api.EncodeI32(int32(len(c.args.Bindings)))
	}},
	{name: "binding_id", params: []api.ValueType{i32}, results: []api.ValueType{i32}, fn: func(ctx context.Context, _ api.Module, stack []uint64) {
		c := callFrom(ctx)
		if c == nil {
			stack[0] = api.EncodeI32(codeNoCall)
			return
		}
		i := int(api.DecodeI32(stack[0]))
		if i < 0 || i >= len(c.args.Bindings) {
			stack[0] = api.EncodeI32(codeRange)
			return
		}
		stack[0] = api.EncodeI32(int32(c.args.Bindings[i].ID))
	}},
	{name: "begin_io", params: []api.ValueType{i32, i32}, results: []api.ValueType{i32}, fn: func(ctx context.Context, _ api.Module, stack []uint64) {
		c := callFrom(ctx)
		if c == nil {
			stack[0] = api.EncodeI32(codeNoCall)
			return
		}
		id := resource.ID(api.DecodeI32(stack[0]))
		dir := resource.Direction(api.DecodeI32(stack[1]))
		stack[0] = api.EncodeI32(result(c.host.BeginIO(id, dir)))
	}},
	{name: "end_io", params: []api.ValueType{i32}, results: []api.ValueType{i32}, fn: func(ctx context.Context, _ api.Module, stack []uint64) {
		c := callFrom(ctx)
		if c == nil {
			stack[0] = api.EncodeI32(codeNoCall)
			return
		}
		stack[0] = api.EncodeI32(result(c.host.EndIO(resource.ID(api.DecodeI32(stack[0])))))
	}},
	{name: "get_record", params: []api.ValueType{i32}, results: []api.ValueType{i32}, fn: func(ctx context.Context, _ api.Module, stack []uint64) {
		c := callFrom(ctx)
		if c == nil {
			stack[0] = api.EncodeI32(codeNoCall)
			return
		}
		rec, err := c.host.GetRecord(resource.ID(api.DecodeI32(stack[0])))
		if err != nil {
			stack[0] = api.EncodeI32(codeFor(err))
			return
		}
		c.cur = rec
		stack[0] = api.EncodeI32(int32(rec.Kind))
	}},
	{name: "field_count", results: []api.ValueType{i32}, fn: func(ctx context.Context, _ api.Module, stack []uint64) {
		c := callFrom(ctx)
		if c == nil {
			stack[0] = api.EncodeI32(codeNoCall)
			return
		}
		stack[0] = api.EncodeI32(int32(len(c.cur.Fields)))
	}},
	{name: "field", params: []api.ValueType{i32}, results: []api.ValueType{f64}, fn: func(ctx context.Context, _ api.Module, stack []uint64) {
		c := callFrom(ctx)
		i := int(api.DecodeI32(stack[0]))
		if c == nil || i < 0 || i >= len(c.cur.Fields) {
			stack[0] = api.EncodeF64(math.NaN())
			return
		}
		stack[0] = api.EncodeF64(c.cur.Fields[i])
	}},
	{name: "set_field", params: []api.ValueType{i32, f64}, fn: func(ctx context.Context, _ api.Module, stack []uint64) {
		c := callFrom(ctx)
		i := int(api.DecodeI32(stack[0]))
		if c == nil || i < 0 || i >= 1<<16 {
			return
		}
		for len(c.out) <= i {
			c.out = append(c.out, math.NaN())
		}
		c.out[i] = api.DecodeF64(stack[1])
	}},
	{name: "put_data", params: []api.ValueType{i32, i32}, results: []api.ValueType{i32}, fn: func(ctx context.Context, _ api.Module, stack []uint64) {
		c := callFrom(ctx)
		if c == nil {
			stack[0] = api.EncodeI32(codeNoCall)
			return
		}
		id := resource.ID(api.DecodeI32(stack[0]))
		n := int(api.DecodeI32(stack[1]))
		if n < 0 || n > len(c.out) {
			stack[0] = api.EncodeI32(codeRange)
			return
		}
		fields := append([]float64(nil), c.out[:n]...)
		c.out = c.out[:0]
		stack[0] = api.EncodeI32(result(c.host.PutRecord(id, record.WriteData, record.Record{Fields: fields})))
	}},
	{name: "echo_record", params: []api.ValueType{i32}, results: []api.ValueType{i32}, fn: func(ctx context.Context, _ api.Module, stack []uint64) {
		c := callFrom(ctx)
		if c == nil {
			stack[0] = api.EncodeI32(codeNoCall)
			return
		}
		mode, ok := record.ModeFor(c.cur.Kind)
		if !ok {
			stack[0] = api.EncodeI32(0)
			return
		}
		id := resource.ID(api.DecodeI32(stack[0]))
		stack[0] = api.EncodeI32(result(c.host.PutRecord(id, mode, c.cur)))
	}},
}

func result(err error) int32 {
	if err != nil {
		return codeFor(err)
	}
	return 0
}
