// Package facerec implements the face learning subsystem: person
// profiles built from weighted face assignments, recognition with
// negative exemplars and learned pair thresholds, greedy clustering of
// unknown faces and assignment suggestions.
package facerec

import (
	"encoding/binary"
	"math"
)

// EncodeEmbedding packs a vector into the little-endian float32 blob
// form stored in the catalog.
func EncodeEmbedding(emb []float32) []byte {
	if len(emb) == 0 {
		return nil
	}
	out := make([]byte, 4*len(emb))
	for i, v := range emb {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// DecodeEmbedding unpacks a stored blob back into a vector. Returns nil
// for empty or truncated blobs.
func DecodeEmbedding(raw []byte) []float32 {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}
