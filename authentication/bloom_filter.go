package authentication

import (
	"hash/fnv"
	"math"
	"sync"
)

// BloomFilter answers "is this username possibly taken" without a store round trip.
// Test never reports false for an added item.
type BloomFilter struct {
	mu     sync.RWMutex
	words  []uint64
	size   uint
	hashes uint
}

func NewBloomFilter(expectedItems uint, falsePositiveRate float64) *BloomFilter {
	if expectedItems == 0 {
		expectedItems = 1
	}

	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	size := bitsFor(expectedItems, falsePositiveRate)

	return &BloomFilter{
		words:  make([]uint64, (size+63)/64),
		size:   size,
		hashes: hashesFor(size, expectedItems),
	}
}

func bitsFor(n uint, p float64) uint {
	m := -float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)

	return max(uint(math.Ceil(m)), 1)
}

func hashesFor(m, n uint) uint {
	return max(uint(math.Round(float64(m)/float64(n)*math.Ln2)), 1)
}

// positions uses double hashing over the two FNV-1 variants.
func (bf *BloomFilter) positions(item string) []uint {
	a := fnv.New64a()
	_, _ = a.Write([]byte(item))
	h1 := uint(a.Sum64())

	b := fnv.New64()
	_, _ = b.Write([]byte(item))
	h2 := uint(b.Sum64()) | 1

	out := make([]uint, bf.hashes)
	for i := range bf.hashes {
		out[i] = (h1 + i*h2) % bf.size
	}

	return out
}

func (bf *BloomFilter) Add(item string) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	for _, pos := range bf.positions(item) {
		bf.words[pos/64] |= 1 << (pos % 64)
	}
}

func (bf *BloomFilter) Test(item string) bool {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	for _, pos := range bf.positions(item) {
		if bf.words[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}

	return true
}
