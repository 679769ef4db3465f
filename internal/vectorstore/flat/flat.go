// Package flat implements an exhaustive squared-L2 vector index with a
// versioned binary encoding.
package flat

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"bilingual-rag/internal/domain"
)

// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Hit is one search result: a position in the index and its squared L2 distance.
type Hit struct {
	Position int
	Distance float64
}

// Index stores vectors row-major and answers k-NN queries by brute force.
type Index struct {
	mu        sync.RWMutex
	dimension int
	data      []float32
	count     int
}

// New returns an empty index for vectors of the given dimension.
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	return &Index{dimension: dimension}, nil
}

// Dimension returns the vector length.
func (x *Index) Dimension() int { return x.dimension }

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.count
}

// Add appends vectors. Positions follow insertion order.
func (x *Index) Add(vectors ...domain.Vector) error {
	for i, v := range vectors {
		if len(v) != x.dimension {
			return fmt.Errorf("%w: vector %d has %d values, want %d", ErrDimensionMismatch, i, len(v), x.dimension)
		}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, v := range vectors {
		x.data = append(x.data, v...)
	}
	x.count += len(vectors)
	return nil
}

// Vector returns a copy of the vector at position i.
func (x *Index) Vector(i int) (domain.Vector, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if i < 0 || i >= x.count {
		return nil, false
	}
	v := make(domain.Vector, x.dimension)
	copy(v, x.data[i*x.dimension:(i+1)*x.dimension])
	return v, true
}

// Search returns the k nearest positions by ascending distance. Equal
// distances are ordered by position. k larger than Len is clamped.
func (x *Index) Search(ctx context.Context, query domain.Vector, k int) ([]Hit, error) {
	if len(query) != x.dimension {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", ErrDimensionMismatch, len(query), x.dimension)
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if k <= 0 || x.count == 0 {
		return nil, nil
	}
	k = min(k, x.count)

	dists := make([]float64, x.count)
	for i := 0; i < x.count; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		dists[i] = squaredL2(x.data[i*x.dimension:(i+1)*x.dimension], query)
	}
	idxs := argsortAsc(dists)
	hits := make([]Hit, k)
	for i := 0; i < k; i++ {
		hits[i] = Hit{Position: idxs[i], Distance: dists[idxs[i]]}
	}
	return hits, nil
}

func squaredL2(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func argsortAsc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	quicksort(idxs, vals, 0, len(idxs)-1)
	return idxs
}

// less orders by value, then by position, so the order is total.
func less(vals []float64, a, b int) bool {
	if vals[a] != vals[b] {
		return vals[a] < vals[b]
	}
	return a < b
}

func quicksort(idxs []int, vals []float64, lo, hi int) {
	if lo >= hi {
		return
	}
	i, j := lo, hi
	pivot := idxs[(lo+hi)/2]
	for i <= j {
		for less(vals, idxs[i], pivot) {
			i++
		}
		for less(vals, pivot, idxs[j]) {
			j--
		}
		if i <= j {
			idxs[i], idxs[j] = idxs[j], idxs[i]
			i++
			j--
		}
	}
	if lo < j {
		quicksort(idxs, vals, lo, j)
	}
	if i < hi {
		quicksort(idxs, vals, i, hi)
	}
}

// Binary layout, little endian:
//
//	magic "BRGX" | version u16 | build id len u16 | build id | dimension u32 | count u64 | count*dimension f32
const (
	magic         = "BRGX"
	formatVersion = 1
	maxBuildIDLen = 256
)

// Encode serialises the index tagged with buildID.
func (x *Index) Encode(buildID string) ([]byte, error) {
	if len(buildID) > maxBuildIDLen {
		return nil, fmt.Errorf("build id too long (%d bytes)", len(buildID))
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	size := len(magic) + 2 + 2 + len(buildID) + 4 + 8 + 4*len(x.data)
	buf := make([]byte, 0, size)
	buf = append(buf, magic...)
	buf = binary.LittleEndian.AppendUint16(buf, formatVersion)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(buildID)))
	buf = append(buf, buildID...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(x.dimension))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(x.count))
	for _, f := range x.data {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf, nil
}

// Decode parses an encoded index and returns it with its build id. Any
// framing problem is reported as domain.ErrIndexCorrupt.
func Decode(data []byte) (*Index, string, error) {
	corrupt := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", domain.ErrIndexCorrupt, fmt.Sprintf(format, args...))
	}
	if len(data) < len(magic)+4 || string(data[:len(magic)]) != magic {
		return nil, "", corrupt("bad magic")
	}
	p := len(magic)
	if v := binary.LittleEndian.Uint16(data[p:]); v != formatVersion {
		return nil, "", corrupt("unsupported format version %d", v)
	}
	p += 2
	idLen := int(binary.LittleEndian.Uint16(data[p:]))
	p += 2
	if idLen > maxBuildIDLen || len(data) < p+idLen+12 {
		return nil, "", corrupt("truncated header")
	}
	buildID := string(data[p : p+idLen])
	p += idLen
	dim := int(binary.LittleEndian.Uint32(data[p:]))
	p += 4
	count := binary.LittleEndian.Uint64(data[p:])
	p += 8
	if dim <= 0 {
		return nil, "", corrupt("invalid dimension %d", dim)
	}
	body := uint64(len(data) - p)
	rowBytes := uint64(dim) * 4
	if body%rowBytes != 0 || body/rowBytes != count {
		return nil, "", corrupt("expected %d vectors of dimension %d, payload has %d bytes", count, dim, body)
	}

	x := &Index{dimension: dim, count: int(count), data: make([]float32, int(count)*dim)}
	for i := range x.data {
		x.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[p:]))
		p += 4
	}
	return x, buildID, nil
}
