package app

import (
	"os"
	"strconv"
	"strings"
)

// TestModeEnv makes binaries return before connecting to Postgres or Redis.
// The blank-imported testing package sets it for every test binary.
const TestModeEnv = "FINREPORTS_TEST_MODE"

// InTestMode reports whether FINREPORTS_TEST_MODE holds a true value
// ("1", "true", "TRUE", ...). It is read on every call.
func InTestMode() bool {
	on, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(TestModeEnv)))
	return err == nil && on
}
