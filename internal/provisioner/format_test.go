package provisioner

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/mapping"
)

func TestFormatResult(t *testing.T) {
	m := &mapping.Mapping{ID: "0192", Hostname: "app.local", TargetAddress: "10.0.0.1", TargetPort: 80}
	out := FormatResult(Result{Success: true, Message: "mapping app.local removed with warnings", Mapping: m, Warnings: []string{"failed to delete DNS record: boom"}})

	assert.True(t, strings.HasPrefix(out, "OK: "))
	assert.Contains(t, out, "app.local -> 10.0.0.1:80")
	assert.Contains(t, out, "- failed to delete DNS record: boom")

	assert.True(t, strings.HasPrefix(FormatResult(Result{Message: "nope"}), "FAILED: nope"))
}

func TestFormatMappings(t *testing.T) {
	assert.Equal(t, "No mappings.\n", FormatMappings(nil))

	removed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	out := FormatMappings([]mapping.Mapping{
		{ID: "a", Hostname: "app.local", TargetAddress: "10.0.0.1", TargetPort: 80, Active: true},
		{ID: "b", Hostname: "old.local", TargetAddress: "10.0.0.2", TargetPort: 81, RemovedAt: &removed},
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[1], "active")
	assert.Contains(t, lines[2], "removed 2025-01-02T03:04:05Z")
}

func TestFormatHealth(t *testing.T) {
	assert.Equal(t, "DNS:   reachable\nProxy: unreachable\n", FormatHealth(HealthStatus{DNS: true}))
}
