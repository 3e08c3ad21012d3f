package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srms_backend/internals/features/certificates/fingerprint"
)

func writeFiles(t *testing.T, contents ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(contents))
	for i, c := range contents {
		p := filepath.Join(dir, string(rune('a'+i))+".bin")
		require.NoError(t, os.WriteFile(p, []byte(c), 0o600))
		paths = append(paths, p)
	}
	return paths
}

func TestDeriveMatchesLibrary(t *testing.T) {
	paths := writeFiles(t, "cert", "report", "photo")

	got, err := deriveFromFiles("S1", paths)
	require.NoError(t, err)

	want, err := fingerprint.DeriveRecordID("S1", []fingerprint.Fingerprint{
		fingerprint.HashDocument([]byte("cert")),
		fingerprint.HashDocument([]byte("report")),
		fingerprint.HashDocument([]byte("photo")),
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDeriveCommand(t *testing.T) {
	paths := writeFiles(t, "cert", "report", "photo")
	var out bytes.Buffer

	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"derive", "S1"}, paths...))
	require.NoError(t, cmd.Execute())

	id := strings.TrimSpace(out.String())
	assert.True(t, fingerprint.IsHexDigest(id), id)
}

func TestHashCommand(t *testing.T) {
	paths := writeFiles(t, "abc")
	var out bytes.Buffer

	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"hash"}, paths...))
	require.NoError(t, cmd.Execute())

	// sha256("abc")
	assert.Contains(t, out.String(), "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
	assert.Contains(t, out.String(), `"cid": "bafk`)
}

func TestDeriveMissingFile(t *testing.T) {
	_, err := deriveFromFiles("S1", []string{filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}
