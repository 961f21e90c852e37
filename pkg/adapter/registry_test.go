package adapter

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownAdapterError_Error(t *testing.T) {
	err := &UnknownAdapterError{
		Type:      "sqlite",
		Available: []string{"duckdb"},
	}

	msg := err.Error()
	assert.Contains(t, (&UnknownAdapterError{Type: "x"}).Error(), "registered: none")
	assert.Contains(t, msg, "sqlite", "error should mention the requested engine")
	assert.Contains(t, msg, "duckdb", "error should list available engines")
	assert.Contains(t, msg, "leapetl.yaml", "error should point at the settings file")
}

func TestRegister(t *testing.T) {
	Register("test_engine", func(_ *slog.Logger) Adapter { return nil })

	assert.True(t, IsRegistered("test_engine"))
	assert.Contains(t, ListAdapters(), "test_engine")

	factory, ok := Get("test_engine")
	assert.True(t, ok)
	assert.NotNil(t, factory)

	assert.Panics(t, func() { Register("test_engine", factory) }, "duplicate names panic")
	assert.Panics(t, func() { Register("nil_engine", nil) })
	assert.False(t, IsRegistered("nil_engine"))
}

func TestListAdapters_Sorted(t *testing.T) {
	Register("zz_engine", func(_ *slog.Logger) Adapter { return nil })
	Register("aa_engine", func(_ *slog.Logger) Adapter { return nil })

	names := ListAdapters()
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "aa_engine")
}

func TestNewAdapter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
		unknown bool
	}{
		{
			name:    "empty type",
			cfg:     Config{},
			wantErr: "adapter type not specified",
		},
		{
			name:    "unregistered type",
			cfg:     Config{Type: "nope"},
			wantErr: `unknown engine "nope"`,
			unknown: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAdapter(tt.cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var unknownErr *UnknownAdapterError
			assert.Equal(t, tt.unknown, errors.As(err, &unknownErr))
		})
	}
}
