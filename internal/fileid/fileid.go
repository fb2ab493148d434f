// Package fileid derives deterministic document IDs from file paths for watched and synced files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// Prefix marks IDs derived from a path. IDs are also index file names, so the
// prefix avoids characters that are not portable in file names.
const Prefix = "file-"

// FileDocID returns a stable document ID for the given absolute path.
// Same path always yields the same ID. Used for ingest/update/delete by path.
func FileDocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return Prefix + hex.EncodeToString(hash[:16])
}

// IsFileDocID reports whether id has the shape produced by FileDocID.
func IsFileDocID(id string) bool {
	rest := strings.TrimPrefix(id, Prefix)
	if rest == id || len(rest) != 32 {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil
}
