package logging

import (
	"os"
	"strings"
	"testing"
)

// zapWriter sends production log output to stderr, the convention the
// teacher's CLI tooling uses for operational logs.
type zapWriter struct{}

func (zapWriter) Write(p []byte) (int, error) {
	return os.Stderr.Write(p)
}

// testWriter routes log lines through testing.TB.Log so assertions in
// _test.go files see log output attributed to the right subtest.
type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
