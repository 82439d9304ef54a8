// Package binpack provides size-bounded grouping and windowing over ordered
// slices. Every function is pure and order-preserving, and every input
// element appears in at least one output bin.
package binpack

import (
	"github.com/custodia-labs/recall/internal/core/domain"
)

// LengthFunc reports the size of one item in whatever unit the caller packs by.
type LengthFunc[T any] func(T) int

// AggregateByLength greedily packs items into bins whose summed length stays
// within maxSize. An item longer than maxSize on its own gets its own bin.
func AggregateByLength[T any](items []T, maxSize int, length LengthFunc[T]) ([][]T, error) {
	if maxSize <= 0 {
		return nil, domain.NewConfigurationError("maxSize", "must be positive, got %d", maxSize)
	}

	bins := make([][]T, 0)
	var current []T
	size := 0
	for _, item := range items {
		n := length(item)
		if len(current) > 0 && size+n > maxSize {
			bins = append(bins, current)
			current = nil
			size = 0
		}
		current = append(current, item)
		size += n
	}
	if len(current) > 0 {
		bins = append(bins, current)
	}
	return bins, nil
}

// ChunkEvenly splits items into ceil(N/maxSize) parts whose sizes differ by at
// most one. The first N mod parts bins carry the extra element.
func ChunkEvenly[T any](items []T, maxSize int) ([][]T, error) {
	if maxSize <= 0 {
		return nil, domain.NewConfigurationError("maxSize", "must be positive, got %d", maxSize)
	}

	n := len(items)
	if n == 0 {
		return [][]T{}, nil
	}
	parts := (n + maxSize - 1) / maxSize
	base, extra := n/parts, n%parts

	bins := make([][]T, 0, parts)
	start := 0
	for i := 0; i < parts; i++ {
		size := base
		if i < extra {
			size++
		}
		bins = append(bins, items[start:start+size:start+size])
		start += size
	}
	return bins, nil
}

// ChunkWithOverlap returns windows of size elements advancing by size-overlap.
// The last window is shortened to end at the final element.
func ChunkWithOverlap[T any](items []T, size, overlap int) ([][]T, error) {
	if err := checkOverlap(size, overlap); err != nil {
		return nil, err
	}

	n := len(items)
	if n == 0 {
		return [][]T{}, nil
	}
	stride := size - overlap
	bins := make([][]T, 0, (n+stride-1)/stride)
	for start := 0; ; start += stride {
		end := min(start+size, n)
		bins = append(bins, items[start:end:end])
		if end == n {
			break
		}
	}
	return bins, nil
}

// Chunk dispatches to ChunkEvenly when overlap is zero and to
// ChunkWithOverlap otherwise.
func Chunk[T any](items []T, size, overlap int) ([][]T, error) {
	if overlap == 0 {
		return ChunkEvenly(items, size)
	}
	return ChunkWithOverlap(items, size, overlap)
}

// WindowByLength groups items into spans whose summed length stays within
// maxSize, then starts the next span on trailing items of the previous one
// whose summed length is below overlap. Each new span starts at least one
// item later than the previous, so the loop always terminates.
func WindowByLength[T any](items []T, maxSize, overlap int, length LengthFunc[T]) ([][]T, error) {
	if err := checkOverlap(maxSize, overlap); err != nil {
		return nil, err
	}

	n := len(items)
	bins := make([][]T, 0)
	l := 0
	for l < n {
		r, size := l, 0
		for r < n && size+length(items[r]) <= maxSize {
			size += length(items[r])
			r++
		}
		if r == l {
			r = l + 1
		}
		bins = append(bins, items[l:r:r])
		if r == n {
			break
		}

		span, back, shared := r-l, 0, 0
		for back < span-1 {
			next := length(items[r-1-back])
			if shared+next >= overlap {
				break
			}
			shared += next
			back++
		}
		l = r - back
	}
	return bins, nil
}

func checkOverlap(size, overlap int) error {
	if size <= 0 {
		return domain.NewConfigurationError("size", "must be positive, got %d", size)
	}
	if overlap < 0 {
		return domain.NewConfigurationError("overlap", "must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return domain.NewConfigurationError("overlap", "%d must be less than size %d", overlap, size)
	}
	return nil
}
