// Package dedup identifies duplicate audio content across playlists.
// Files are fingerprinted by hashing the MPEG audio frames only, so two
// copies of the same track hash identically regardless of how they are
// tagged.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const (
	id3v2HeaderSize  = 10
	id3v1TrailerSize = 128
)

// Hash returns the hex SHA-256 of the audio frames in the file at path.
// A leading ID3v2 tag and a trailing ID3v1 tag are excluded, so the hash
// computed before tagging equals the hash after tagging.
func Hash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file for hashing: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat file for hashing: %w", err)
	}
	size := info.Size()

	start, err := audioStart(f)
	if err != nil {
		return "", err
	}

	end := size
	if trailing, err := hasID3v1Trailer(f, size); err != nil {
		return "", err
	} else if trailing {
		end = size - id3v1TrailerSize
	}

	if start > end {
		// Tag regions overlap or the file is truncated mid-tag.
		start = 0
		end = size
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return "", fmt.Errorf("seeking to audio start: %w", err)
	}

	h := sha256.New()
	if _, err := io.CopyN(h, f, end-start); err != nil && err != io.EOF {
		return "", fmt.Errorf("hashing audio content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// audioStart returns the offset of the first audio byte, skipping a
// leading ID3v2 tag when present.
func audioStart(f *os.File) (int64, error) {
	header := make([]byte, id3v2HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, nil // file smaller than a tag header, hash it whole
		}
		return 0, fmt.Errorf("reading tag header: %w", err)
	}
	if n < id3v2HeaderSize || string(header[:3]) != "ID3" {
		return 0, nil
	}

	tagSize, ok := syncsafeSize(header[6:10])
	if !ok {
		return 0, nil
	}

	skip := int64(id3v2HeaderSize) + tagSize
	// Footer flag (bit 4) adds a 10-byte trailer copy of the header.
	if header[5]&0x10 != 0 {
		skip += id3v2HeaderSize
	}
	return skip, nil
}

// hasID3v1Trailer reports whether the file ends in a 128-byte ID3v1 tag.
func hasID3v1Trailer(f *os.File, size int64) (bool, error) {
	if size < id3v1TrailerSize {
		return false, nil
	}

	marker := make([]byte, 3)
	if _, err := f.ReadAt(marker, size-id3v1TrailerSize); err != nil {
		return false, fmt.Errorf("reading trailer marker: %w", err)
	}
	return string(marker) == "TAG", nil
}

// syncsafeSize decodes a 4-byte syncsafe integer. Each byte carries 7 bits;
// a set high bit means the tag header is corrupt.
func syncsafeSize(b []byte) (int64, bool) {
	var size int64
	for _, c := range b {
		if c&0x80 != 0 {
			return 0, false
		}
		size = size<<7 | int64(c)
	}
	return size, true
}
