// Package globaltime is the single clock of the process. Production code
// reads UTC(); tests freeze it to make ingestion runs deterministic.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

func UTC() time.Time {
	return Now().UTC()
}

// Freeze pins the clock to a fixed instant until Unfreeze is called.
func Freeze(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
}

func Unfreeze() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
}
