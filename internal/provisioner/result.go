package provisioner

import "github.com/yuriy-kovalchuk/yk-speeddial/internal/mapping"

// Reason classifies a failed Result so callers can map it onto their own
// error surface (HTTP status, exit code).
type Reason string

const (
	ReasonInvalid   Reason = "invalid"
	ReasonDuplicate Reason = "duplicate"
	ReasonNotFound  Reason = "not_found"
	ReasonRemote    Reason = "remote"
	ReasonInternal  Reason = "internal"
)

// Result is the outcome of an orchestrator operation. Expected failures are
// reported here rather than as Go errors.
type Result struct {
	Success  bool
	Message  string
	Reason   Reason
	Warnings []string
	Mapping  *mapping.Mapping
}

// HealthStatus reports reachability of the two remote systems.
type HealthStatus struct {
	DNS   bool
	Proxy bool
}

func ok(message string, m *mapping.Mapping, warnings []string) Result {
	return Result{Success: true, Message: message, Mapping: m, Warnings: warnings}
}

func fail(reason Reason, message string) Result {
	return Result{Success: false, Reason: reason, Message: message}
}
