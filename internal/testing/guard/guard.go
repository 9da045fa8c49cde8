// Package guard switches the process into test mode when imported, so
// binaries under test skip their runtime startup.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CONDOHUB_TEST_MODE") == "" {
			_ = os.Setenv("CONDOHUB_TEST_MODE", "1")
		}
	})
}
