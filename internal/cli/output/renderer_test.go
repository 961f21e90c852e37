package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTest(mode Mode, tty bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, tty, mode), out, errOut
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		mode Mode
		want Mode
	}{
		{mode: "", want: ModeText},
		{mode: ModeAuto, want: ModeText},
		{mode: ModeText, want: ModeText},
		{mode: ModeJSON, want: ModeJSON},
	}
	for _, tt := range tests {
		r, _, _ := newTest(tt.mode, false)
		assert.Equal(t, tt.want, r.EffectiveMode(), "mode %q", tt.mode)
	}
}

func TestNewRenderer_BufferIsNotTerminal(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
}

func TestStatusLines(t *testing.T) {
	r, out, errOut := newTest(ModeText, false)
	r.Success("exported out/a.csv")
	r.Warning("no exports")
	r.Error("exports[1] failed")

	assert.Equal(t, "✓ exported out/a.csv\n", out.String())
	assert.Equal(t, "! no exports\n✗ exports[1] failed\n", errOut.String())
}

func TestKeyValue(t *testing.T) {
	r, out, _ := newTest(ModeText, false)
	r.KeyValue("Run", "abc")
	assert.Equal(t, "Run:         abc\n", out.String())
}

func TestTable(t *testing.T) {
	r, out, _ := newTest(ModeText, false)
	r.Table([]string{"id", "name"}, [][]any{{int64(1), "a"}, {int64(2), nil}})

	got := out.String()
	lines := strings.Split(strings.TrimSpace(got), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Contains(t, got, "ID")
	assert.Contains(t, got, "NULL")
}

func TestEncode(t *testing.T) {
	r, out, _ := newTest(ModeJSON, false)
	require.NoError(t, r.Encode(map[string]int{"rows": 2}))
	assert.JSONEq(t, `{"rows": 2}`, out.String())
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 5, 17, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		in   any
		want string
	}{
		{in: nil, want: "NULL"},
		{in: []byte("raw"), want: "raw"},
		{in: ts, want: "2024-05-17T08:00:00Z"},
		{in: 1.5, want: "1.5"},
		{in: []any{"a", int64(1)}, want: "[a 1]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}
