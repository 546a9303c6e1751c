package go_func_utils

import (
	"bytes"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeGoTracked(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0
	for i := 0; i < 5; i++ {
		SafeGoTracked(logger, &wg, func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.Equal(t, 5, count)
	assert.Empty(t, buf.String())
}
