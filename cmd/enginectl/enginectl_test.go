package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIds(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		args    []string
		want    []uuid.UUID
		wantErr string
	}{
		{name: "valid", args: []string{id.String()}, want: []uuid.UUID{id}},
		{name: "invalid", args: []string{id.String(), "doc-1"}, wantErr: `invalid document id "doc-1"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIds(tt.args)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lease.md")
	require.NoError(t, os.WriteFile(path, []byte("# Deposit\n\nTwo months."), 0o600))

	doc, err := readDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "# Deposit\n\nTwo months.", doc)

	_, err = readDocument(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "ingest", "delete-chunks", "query", "review", "collaborate"} {
		assert.True(t, names[want], want)
	}
}
