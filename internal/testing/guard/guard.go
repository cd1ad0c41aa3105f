// Package guard switches binaries into test mode when imported by their tests,
// so calling main does not open stores or listen on ports.
package guard

import (
	"os"
	"sync"
)

// TestModeEnv is the variable read by app.InTestMode.
const TestModeEnv = "LEDGERPOS_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(TestModeEnv) == "" {
			_ = os.Setenv(TestModeEnv, "1")
		}
	})
}
