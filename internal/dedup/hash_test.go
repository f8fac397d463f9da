package dedup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile drops content into a temp file and returns its path.
func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.mp3")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// id3v2Tag builds a minimal ID3v2 tag of the given payload size.
func id3v2Tag(payloadSize int) []byte {
	header := []byte{'I', 'D', '3', 4, 0, 0,
		byte(payloadSize >> 21 & 0x7f),
		byte(payloadSize >> 14 & 0x7f),
		byte(payloadSize >> 7 & 0x7f),
		byte(payloadSize & 0x7f),
	}
	return append(header, make([]byte, payloadSize)...)
}

// id3v1Tag builds a 128-byte ID3v1 trailer.
func id3v1Tag() []byte {
	tag := make([]byte, 128)
	copy(tag, "TAG")
	return tag
}

func audioFrames() []byte {
	// Arbitrary bytes standing in for MPEG frames.
	frames := make([]byte, 4096)
	for i := range frames {
		frames[i] = byte(i * 31)
	}
	return frames
}

func TestHash_IgnoresTags(t *testing.T) {
	audio := audioFrames()

	bare := writeFile(t, audio)
	bareHash, err := Hash(bare)
	require.NoError(t, err)

	t.Run("leading ID3v2 tag", func(t *testing.T) {
		tagged := writeFile(t, append(id3v2Tag(256), audio...))
		h, err := Hash(tagged)
		require.NoError(t, err)
		assert.Equal(t, bareHash, h)
	})

	t.Run("trailing ID3v1 tag", func(t *testing.T) {
		tagged := writeFile(t, append(append([]byte{}, audio...), id3v1Tag()...))
		h, err := Hash(tagged)
		require.NoError(t, err)
		assert.Equal(t, bareHash, h)
	})

	t.Run("both tags", func(t *testing.T) {
		content := append(id3v2Tag(1024), audio...)
		content = append(content, id3v1Tag()...)
		h, err := Hash(writeFile(t, content))
		require.NoError(t, err)
		assert.Equal(t, bareHash, h)
	})
}

func TestHash_DifferentAudioDiffers(t *testing.T) {
	a, err := Hash(writeFile(t, audioFrames()))
	require.NoError(t, err)

	other := audioFrames()
	other[100] ^= 0xff
	b, err := Hash(writeFile(t, other))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHash_TinyFile(t *testing.T) {
	h, err := Hash(writeFile(t, []byte("abc")))
	require.NoError(t, err)
	assert.NotEmpty(t, h)
}

func TestHash_CorruptSyncsafeSize(t *testing.T) {
	// High bit set in the size field: not a valid ID3v2 tag, whole file hashed.
	content := []byte{'I', 'D', '3', 4, 0, 0, 0x80, 0, 0, 0}
	content = append(content, audioFrames()...)

	h, err := Hash(writeFile(t, content))
	require.NoError(t, err)
	assert.NotEmpty(t, h)
}

func TestHash_TruncatedTag(t *testing.T) {
	// Declared tag size exceeds the file: fall back to hashing everything.
	content := append(id3v2Tag(64)[:12], 1, 2, 3)
	h, err := Hash(writeFile(t, content))
	require.NoError(t, err)
	assert.NotEmpty(t, h)
}

func TestHash_MissingFile(t *testing.T) {
	_, err := Hash(filepath.Join(t.TempDir(), "nope.mp3"))
	assert.Error(t, err)
}

func TestSyncsafeSize(t *testing.T) {
	size, ok := syncsafeSize([]byte{0, 0, 0x02, 0x01})
	require.True(t, ok)
	assert.Equal(t, int64(257), size)

	_, ok = syncsafeSize([]byte{0x80, 0, 0, 0})
	assert.False(t, ok)
}
