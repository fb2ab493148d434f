package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash"
	"hash/fnv"

	"github.com/hyperjump/bunko/internal/models"
)

// chunkDigest fingerprints a chunk list. AddDocument stores it as the index tag and
// Open compares it with the ledger's chunks, so an index file that was committed
// without its ledger entry is never paired with another chunk list.
// The value must survive a ledger round trip: empty metadata maps are not
// distinguished from nil, and map keys are hashed in sorted order.
func chunkDigest(chunks []models.Chunk) uint64 {
	h := fnv.New64a()
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(chunks)))
	_, _ = h.Write(n[:])
	for _, c := range chunks {
		writeField(h, []byte(c.Content))
		writeField(h, metadataBytes(c.Metadata))
	}
	return h.Sum64()
}

func metadataBytes(meta map[string]interface{}) []byte {
	if len(meta) == 0 {
		return nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		// NaN or Inf values; fmt prints maps with sorted keys too.
		return []byte(fmt.Sprint(meta))
	}
	return b
}

func writeField(h hash.Hash64, b []byte) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(b)))
	_, _ = h.Write(n[:])
	_, _ = h.Write(b)
}
