package hashing

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"FirstWordLittleEndian", testDigestFirstWordLittleEndian},
		{"FirstWordShortDigest", testDigestFirstWordShortDigest},
		{"Hex", testDigestHex},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testDigestFirstWordLittleEndian(t *testing.T) {
	digest := NewDigest([]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff})

	// Leading 8 bytes, little-endian: the first byte is the lowest word byte
	assert.Equal(t, uint64(1), digest.FirstWord())
	assert.Equal(t, 10, digest.Len())
}

func testDigestFirstWordShortDigest(t *testing.T) {
	digest := NewDigest([]byte{0x02})
	assert.Equal(t, uint64(2), digest.FirstWord(), "short digests are zero-padded")
}

func testDigestHex(t *testing.T) {
	digest := NewDigest([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.Equal(t, "deadbeef", digest.Hex())
}

func TestHashFile(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "data")
	content := []byte("some file content")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	file, err := HashFile(path)
	require.NoError(t, err)

	expected := sha256.Sum256(content)
	assert.Equal(t, expected[:], file.Digest.Bytes())
	assert.Equal(t, int64(len(content)), file.Size)
	assert.Equal(t, path, file.Path)
}

func TestPipelineHashFiles(t *testing.T) {
	tempDir := t.TempDir()

	var paths []string
	for _, name := range []string{"a", "b", "c"} {
		path := filepath.Join(tempDir, name)
		require.NoError(t, os.WriteFile(path, []byte("content-"+name), 0o644))
		paths = append(paths, path)
	}
	// Equal contents in two different files yield equal digests
	twin := filepath.Join(tempDir, "a-twin")
	require.NoError(t, os.WriteFile(twin, []byte("content-a"), 0o644))
	paths = append(paths, twin)

	pipeline := NewPipeline(2)
	files, err := pipeline.HashFiles(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, files, len(paths))

	byPath := make(map[string]*File, len(files))
	for _, file := range files {
		byPath[file.Path] = file
	}

	assert.Equal(t,
		byPath[filepath.Join(tempDir, "a")].Digest.Bytes(),
		byPath[twin].Digest.Bytes(),
		"identical content must hash identically")
	assert.NotEqual(t,
		byPath[filepath.Join(tempDir, "a")].Digest.Bytes(),
		byPath[filepath.Join(tempDir, "b")].Digest.Bytes())
}

func TestPipelineSkipsUnreadable(t *testing.T) {
	tempDir := t.TempDir()
	good := filepath.Join(tempDir, "good")
	require.NoError(t, os.WriteFile(good, []byte("ok"), 0o644))

	pipeline := NewPipeline(2)
	files, err := pipeline.HashFiles(context.Background(), []string{good, filepath.Join(tempDir, "missing")})
	require.NoError(t, err, "unreadable files are skipped, not fatal")
	require.Len(t, files, 1)
	assert.Equal(t, good, files[0].Path)
}
