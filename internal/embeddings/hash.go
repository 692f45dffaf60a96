package embeddings

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// HashService derives vectors from a hash of the input text. The
// vectors carry no learned structure: identical texts map to identical
// vectors and nothing more. Useful for reproducible tests and offline
// smoke runs, not for real similarity quality.
type HashService struct {
	dimensions int
}

// DefaultHashDimensions is the vector width used when none is configured.
const DefaultHashDimensions = 64

// NewHashService creates a deterministic hash-based embedding service.
func NewHashService(dimensions int) *HashService {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}
	return &HashService{dimensions: dimensions}
}

// Embed generates a deterministic vector for the text.
func (s *HashService) Embed(_ context.Context, text string) ([]float32, error) {
	return s.vector(text), nil
}

// EmbedQuery is identical to Embed; there is no task prefix.
func (s *HashService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.Embed(ctx, text)
}

// EmbedBatch generates one vector per input, in input order.
func (s *HashService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = s.vector(text)
	}
	return vectors, nil
}

// Dimensions returns the vector width.
func (s *HashService) Dimensions() int {
	return s.dimensions
}

// Provider returns the provider name.
func (s *HashService) Provider() Provider {
	return ProviderHash
}

// ModelName returns the model name.
func (s *HashService) ModelName() string {
	return fmt.Sprintf("xxh64-%d", s.dimensions)
}

// vector fills each component from an xxhash of the text keyed by the
// component index, then normalizes to unit length.
func (s *HashService) vector(text string) []float32 {
	var key [8]byte
	vec := make([]float32, s.dimensions)
	var norm float64

	for i := range vec {
		binary.LittleEndian.PutUint64(key[:], uint64(i))

		h := xxhash.New()
		_, _ = h.Write(key[:])
		_, _ = h.WriteString(text)

		// Map the 64-bit hash onto [-1, 1).
		v := float64(int64(h.Sum64())) / float64(math.MaxInt64)
		vec[i] = float32(v)
		norm += v * v
	}

	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}

	return vec
}
