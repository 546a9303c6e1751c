package go_func_utils

import (
	"log"
	"runtime/debug"
	"sync"
)

// SafeGo runs fn on a new goroutine. A panic is written to logger with its
// stack before it is re-raised, since the terminal UI hides stderr.
func SafeGo(logger *log.Logger, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Printf("PANIC: %v\n%s", r, debug.Stack())
				panic(r)
			}
		}()
		fn()
	}()
}

// SafeGoTracked is SafeGo with wg accounting for the goroutine
func SafeGoTracked(logger *log.Logger, wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	SafeGo(logger, func() {
		defer wg.Done()
		fn()
	})
}
