package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo_String(t *testing.T) {
	info := Info{Version: "v1.4.0", Commit: "abc123", BuildTime: "2026-10-01T12:00:00Z", GoVersion: "go1.25.5"}

	assert.Equal(t, "gridlayout v1.4.0 (commit abc123, built 2026-10-01T12:00:00Z, go1.25.5)", info.String())
}

func TestGet_ReportsRuntime(t *testing.T) {
	info := Get()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Contains(t, info.LogAttrs(), "commit")
}
