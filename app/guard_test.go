package app

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubmissionGuard(t *testing.T) {
	g := NewSubmissionGuard()
	defer g.Close()

	assert.True(t, g.Acquire("form|10.0.0.1"))
	assert.False(t, g.Acquire("form|10.0.0.1"))
	assert.True(t, g.Acquire("form|10.0.0.2"))

	g.Release("form|10.0.0.1")
	assert.True(t, g.Acquire("form|10.0.0.1"))
}

func TestSubmissionGuardConcurrent(t *testing.T) {
	g := NewSubmissionGuard()
	defer g.Close()

	var won atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Acquire("same") {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, won.Load())
}
