package native

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/govm-net/counter/core"
)

type recorder struct {
	calls *[]string
}

func (r recorder) Call(core.Context)             { *r.calls = append(*r.calls, "call") }
func (r recorder) CounterInc(core.Context)       { *r.calls = append(*r.calls, "counter_inc") }
func (r recorder) Helper(int) string             { return "" }
func (r recorder) WithResult(core.Context) error { return nil }

func TestMethodName(t *testing.T) {
	tests := []struct {
		entryPoint string
		method     string
	}{
		{"call", "Call"},
		{"counter_inc", "CounterInc"},
		{"counter_reset", "CounterReset"},
		{"a_b_c", "ABC"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.method, MethodName(tt.entryPoint))
	}
	assert.Equal(t, "counter_get", EntryPointName("CounterGet"))
	assert.Equal(t, "call", EntryPointName("Call"))
	assert.Equal(t, "read_u_ref", EntryPointName("ReadURef"))
	assert.Equal(t, "ReadURef", MethodName("read_u_ref"))
}

type underscored struct{}

func (underscored) Call(core.Context)      {}
func (underscored) Get_Count(core.Context) {}

func TestRegisterRejectsUnmappableMethod(t *testing.T) {
	err := Register("underscored", underscored{})
	assert.ErrorIs(t, err, ErrBadMethodName)
	_, ok := Lookup("underscored")
	assert.False(t, ok)
}

func TestMethodNameConcurrent(t *testing.T) {
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for j := 0; j < 100; j++ {
				if got := MethodName("counter_reset"); got != "CounterReset" {
					return errors.Errorf("got %s", got)
				}
			}
			return nil
		})
	}
	assert.NoError(t, g.Wait())
}

func TestRegisterAndInvoke(t *testing.T) {
	var calls []string
	require.NoError(t, Register("recorder", recorder{calls: &calls}))
	assert.Contains(t, ListRegistered(), "recorder")

	code := ModuleBytes("recorder")
	assert.True(t, IsNative(code))
	assert.False(t, IsNative([]byte("\x00asm")))

	m, err := Load(code)
	require.NoError(t, err)
	assert.Equal(t, "recorder", m.Name())
	assert.Equal(t, []string{"call", "counter_inc"}, m.EntryPoints())
	assert.True(t, m.Has("counter_inc"))
	assert.False(t, m.Has("helper"))
	assert.False(t, m.Has("with_result"))

	require.NoError(t, m.Invoke(nil, "counter_inc"))
	require.NoError(t, m.Invoke(nil, "call"))
	assert.Equal(t, []string{"counter_inc", "call"}, calls)

	err = m.Invoke(nil, "counter_dec")
	assert.ErrorIs(t, err, ErrNoSuchExport)
}

func TestRegisterErrors(t *testing.T) {
	assert.Error(t, Register("", recorder{}))
	assert.Error(t, Register("nil", nil))
	assert.Error(t, Register("empty", struct{}{}))

	require.NoError(t, Register("twice", recorder{calls: new([]string)}))
	assert.Error(t, Register("twice", recorder{calls: new([]string)}))
	assert.Panics(t, func() { MustRegister("twice", recorder{}) })

	_, err := Load(ModuleBytes("missing"))
	assert.ErrorIs(t, err, ErrModuleNotFound)
	_, err = Load([]byte("plain"))
	assert.ErrorIs(t, err, ErrNotNative)
}
