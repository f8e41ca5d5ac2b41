// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  Secrets
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "pmc-api-key", "  abc123  \n")
				writeFile(t, dir, "email", "user@example.com\n")
				return dir
			},
			want: Secrets{
				"pmc-api-key": "abc123",
				"email":       "user@example.com",
			},
		},
		{
			name: "returns empty secrets for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: Secrets{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "llm-api-key", "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: Secrets{"llm-api-key": "valid-key"},
		},
		{
			name: "skips dotfiles",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, "email", "a@b.org")
				return dir
			},
			want: Secrets{"email": "a@b.org"},
		},
		{
			name: "skips subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "pmc-api-key", "k_123")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: Secrets{"pmc-api-key": "k_123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeysSorted(t *testing.T) {
	s := Secrets{"pmc-api-key": "1", "email": "2", "llm-api-key": "3"}
	assert.Equal(t, []string{"email", "llm-api-key", "pmc-api-key"}, s.Keys())
}

func TestFill(t *testing.T) {
	v := viper.New()
	v.SetDefault("entrez.email", "")
	v.Set("entrez.api_key", "from-env")

	s := Secrets{
		"email":       "file@example.com",
		"pmc-api-key": "from-file",
		"unrelated":   "ignored",
	}
	s.Fill(v)

	assert.Equal(t, "file@example.com", v.GetString("entrez.email"))
	assert.Equal(t, "from-env", v.GetString("entrez.api_key"), "explicit values win")
	assert.Empty(t, v.GetString("llm.api_key"))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
