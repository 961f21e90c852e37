package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr string
	}{
		{
			name:  "nil params returns empty struct",
			input: nil,
			want:  &Params{},
		},
		{
			name: "extensions and settings",
			input: map[string]any{
				"extensions": []any{"httpfs"},
				"settings": map[string]any{
					"memory_limit": "4GB",
					"threads":      4,
				},
			},
			want: &Params{
				Extensions: []string{"httpfs"},
				Settings: map[string]string{
					"memory_limit": "4GB",
					"threads":      "4",
				},
			},
		},
		{
			name: "secret with scope list",
			input: map[string]any{
				"secrets": []any{
					map[string]any{
						"type":     "s3",
						"provider": "credential_chain",
						"scope":    []any{"s3://raw", "s3://exports"},
						"use_ssl":  false,
					},
				},
			},
			want: &Params{
				Secrets: []SecretConfig{{
					Type:     "s3",
					Provider: "credential_chain",
					Scope:    []any{"s3://raw", "s3://exports"},
					UseSSL:   boolPtr(false),
				}},
			},
		},
		{
			name:    "unknown key is rejected",
			input:   map[string]any{"extension": []any{"httpfs"}},
			wantErr: "invalid duckdb params",
		},
		{
			name: "secret without type is rejected",
			input: map[string]any{
				"secrets": []any{map[string]any{"provider": "config"}},
			},
			wantErr: "secrets[0]: type is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildCreateSecretSQL(t *testing.T) {
	tests := []struct {
		name string
		cfg  SecretConfig
		want string
	}{
		{
			name: "type only",
			cfg:  SecretConfig{Type: "s3"},
			want: "CREATE SECRET (\n    TYPE s3\n)",
		},
		{
			name: "credential chain with region",
			cfg: SecretConfig{
				Type:     "s3",
				Provider: "credential_chain",
				Region:   "eu-west-1",
			},
			want: "CREATE SECRET (\n    TYPE s3,\n    PROVIDER credential_chain,\n    REGION 'eu-west-1'\n)",
		},
		{
			name: "scopes as []string",
			cfg: SecretConfig{
				Type:  "gcs",
				Scope: []string{"gs://a", "gs://b"},
			},
			want: "CREATE SECRET (\n    TYPE gcs,\n    SCOPE ('gs://a', 'gs://b')\n)",
		},
		{
			name: "s3 compatible endpoint",
			cfg: SecretConfig{
				Type:     "s3",
				Provider: "config",
				KeyID:    "minio",
				Secret:   "it's-secret",
				Endpoint: "localhost:9000",
				URLStyle: "path",
				UseSSL:   boolPtr(false),
			},
			want: "CREATE SECRET (\n    TYPE s3,\n    PROVIDER config,\n    KEY_ID 'minio',\n    SECRET 'it''s-secret',\n" +
				"    ENDPOINT 'localhost:9000',\n    URL_STYLE 'path',\n    USE_SSL false\n)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildCreateSecretSQL(tt.cfg))
		})
	}
}

func boolPtr(b bool) *bool {
	return &b
}
