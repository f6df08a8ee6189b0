package authentication_test

import (
	"fmt"
	"testing"

	"github.com/nasermirzaei89/myboard/authentication"
	"github.com/stretchr/testify/assert"
)

func TestBloomFilter(t *testing.T) {
	t.Parallel()

	bf := authentication.NewBloomFilter(1000, 0.01)

	for i := range 1000 {
		bf.Add(fmt.Sprintf("user%d", i))
	}

	for i := range 1000 {
		assert.True(t, bf.Test(fmt.Sprintf("user%d", i)))
	}

	falsePositives := 0

	for i := range 1000 {
		if bf.Test(fmt.Sprintf("stranger%d", i)) {
			falsePositives++
		}
	}

	assert.Less(t, falsePositives, 100)
}

func TestBloomFilter_ZeroCapacity(t *testing.T) {
	t.Parallel()

	bf := authentication.NewBloomFilter(0, 0)
	assert.False(t, bf.Test("alice"))

	bf.Add("alice")
	assert.True(t, bf.Test("alice"))
}
