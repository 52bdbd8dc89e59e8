package module_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/databroker/errors"
	"github.com/wippyai/databroker/module"
	"github.com/wippyai/databroker/session"
)

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func wasmModule(sections ...[]byte) []byte {
	out := append([]byte(nil), wasmHeader...)
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

// broker_answer(mode) returns 7.
var answerWasm = wasmModule(
	[]byte{0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f},
	[]byte{0x03, 0x02, 0x01, 0x00},
	append(append([]byte{0x07, 0x11, 0x01, 0x0d}, "broker_answer"...), 0x00, 0x00),
	[]byte{0x0a, 0x06, 0x01, 0x04, 0x00, 0x41, 0x07, 0x0b},
)

// broker_mode(mode) returns mode.
var modeWasm = wasmModule(
	[]byte{0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f},
	[]byte{0x03, 0x02, 0x01, 0x00},
	append(append([]byte{0x07, 0x0f, 0x01, 0x0b}, "broker_mode"...), 0x00, 0x00),
	[]byte{0x0a, 0x06, 0x01, 0x04, 0x00, 0x20, 0x00, 0x0b},
)

// broker_count(mode) returns broker.option_count().
var countWasm = wasmModule(
	[]byte{0x01, 0x0a, 0x02, 0x60, 0x00, 0x01, 0x7f, 0x60, 0x01, 0x7f, 0x01, 0x7f},
	append(append(append(append([]byte{0x02, 0x17, 0x01, 0x06}, "broker"...), 0x0c), "option_count"...), 0x00, 0x00),
	[]byte{0x03, 0x02, 0x01, 0x01},
	append(append([]byte{0x07, 0x10, 0x01, 0x0c}, "broker_count"...), 0x00, 0x01),
	[]byte{0x0a, 0x06, 0x01, 0x04, 0x00, 0x10, 0x00, 0x0b},
)

// broker_bad takes no parameters.
var badSignatureWasm = wasmModule(
	[]byte{0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f},
	[]byte{0x03, 0x02, 0x01, 0x00},
	append(append([]byte{0x07, 0x0e, 0x01, 0x0a}, "broker_bad"...), 0x00, 0x00),
	[]byte{0x0a, 0x06, 0x01, 0x04, 0x00, 0x41, 0x00, 0x0b},
)

func wasmDir(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+module.Extension), data, 0o644))
	}
	return dir
}

func TestWASMLoader_Load(t *testing.T) {
	ctx := context.Background()
	l, err := module.NewWASMLoader(ctx)
	require.NoError(t, err)
	defer l.Close(ctx)

	d, err := l.Load(ctx, "answer", answerWasm)
	require.NoError(t, err)
	assert.Equal(t, "answer", d.Name)
	assert.True(t, d.Dynamic)
	assert.Equal(t, module.DefaultKeys, d.Keys)

	_, err = l.Load(ctx, "other", answerWasm)
	assert.True(t, errors.IsKind(err, errors.KindInvalidData), "missing export: %v", err)

	_, err = l.Load(ctx, "bad", badSignatureWasm)
	assert.True(t, errors.IsKind(err, errors.KindInvalidData), "signature: %v", err)

	_, err = l.Load(ctx, "junk", []byte("not wasm"))
	assert.True(t, errors.IsKind(err, errors.KindInvalidData), "compile: %v", err)
}

func TestWASMLoader_Find(t *testing.T) {
	ctx := context.Background()
	l, err := module.NewWASMLoader(ctx)
	require.NoError(t, err)
	defer l.Close(ctx)

	empty := t.TempDir()
	dir := wasmDir(t, map[string][]byte{"answer": answerWasm})

	_, ok, err := l.Find(ctx, "answer", []string{empty, dir})
	require.NoError(t, err)
	assert.True(t, ok)

	for _, name := range []string{"missing", "../answer", ""} {
		_, ok, err = l.Find(ctx, name, []string{dir})
		require.NoError(t, err)
		assert.False(t, ok, name)
	}
}

func TestCallModule_LazyWASM(t *testing.T) {
	ctx := context.Background()
	dir := wasmDir(t, map[string][]byte{"answer": answerWasm, "mode": modeWasm, "count": countWasm})
	reg := module.NewRegistry(module.WithSearchPath(dir))
	s, err := session.New("wasm", session.WithModules(reg))
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, reg.Has("answer"))
	status, err := s.CallModule(ctx, "answer", module.ModeRun, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, status)
	assert.True(t, reg.Has("answer"))

	status, err = s.CallModule(ctx, "mode", module.ModeUsage, nil)
	require.NoError(t, err)
	assert.Equal(t, int(module.ModeUsage), status)

	status, err = s.CallModule(ctx, "count", module.ModeRun, "-A1 -B2 -C")
	require.NoError(t, err)
	assert.Equal(t, 3, status)

	_, err = s.CallModule(ctx, "nothing", module.ModeRun, nil)
	assert.True(t, errors.IsKind(err, errors.KindModuleNotFound))

	require.NoError(t, reg.Close(ctx))
	assert.False(t, reg.Has("answer"))
	_, err = s.CallModule(ctx, "answer", module.ModeRun, nil)
	assert.True(t, errors.IsKind(err, errors.KindModuleNotFound))
}

func TestRegistry_LoadDir(t *testing.T) {
	ctx := context.Background()
	dir := wasmDir(t, map[string][]byte{"answer": answerWasm, "mode": modeWasm})
	reg := module.NewRegistry()
	defer reg.Close(ctx)

	n, err := reg.LoadDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, reg.Has("answer"))
	assert.True(t, reg.Has("mode"))

	err = reg.LoadWASM(ctx, filepath.Join(dir, "answer"+module.Extension))
	assert.True(t, errors.IsKind(err, errors.KindRegistration), "duplicate: %v", err)
}
