package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// testModeEnv makes the binaries inert under go test: main() returns before
// touching Postgres, Redis or S3. The guard package under testing/ sets it
// for every test binary in the repo.
const testModeEnv = "DROPZONE_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// InTestMode reports whether runtime side effects should be skipped.
func InTestMode() bool {
	testModeOnce.Do(RefreshTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the environment flag. Tests that flip the
// variable mid-process call this to make the change visible.
func RefreshTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}
