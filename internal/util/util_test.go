package util

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncateRunes(t *testing.T) {
	require.Equal(t, "héll", TruncateRunes("héllo", 4))
	require.Equal(t, "héllo", TruncateRunes("héllo", 10))
	require.Equal(t, "héllo", TruncateRunes("héllo", 0))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "doc.bin")
	require.NoError(t, WriteFileAtomic(path, []byte{1, 2, 3}))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)
}

func TestIsInputError(t *testing.T) {
	require.True(t, IsInputError(fmt.Errorf("upload: %w", ErrFileTooLarge)))
	require.False(t, IsInputError(ErrNoUsableTerms))
}

func TestSHA256Hex(t *testing.T) {
	require.Len(t, SHA256Hex([]byte("abc")), 64)
}
