package version_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/slotarray/pkg/version"
)

func TestGet_Defaults(t *testing.T) {
	t.Parallel()

	info := version.Get()

	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Commit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestInfo_String(t *testing.T) {
	t.Parallel()

	info := version.Info{Version: "v1.2.3", Commit: "abc123", Date: "2026-01-02", GoVersion: "go1.24.5"}

	assert.Equal(t, "v1.2.3 (commit abc123, built 2026-01-02, go1.24.5)", info.String())
}
