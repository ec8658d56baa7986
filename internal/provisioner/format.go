package provisioner

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/mapping"
)

// FormatResult returns a human-readable representation of a Result.
func FormatResult(res Result) string {
	var b strings.Builder

	status := "OK"
	if !res.Success {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "%s: %s\n", status, res.Message)

	if res.Mapping != nil {
		m := res.Mapping
		fmt.Fprintf(&b, "  ID:     %s\n", m.ID)
		fmt.Fprintf(&b, "  Route:  %s -> %s:%d\n", m.Hostname, m.TargetAddress, m.TargetPort)
	}

	if len(res.Warnings) > 0 {
		fmt.Fprintf(&b, "  Warnings:\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "    - %s\n", w)
		}
	}

	return b.String()
}

// FormatMappings renders mappings as an aligned table.
func FormatMappings(mappings []mapping.Mapping) string {
	if len(mappings) == 0 {
		return "No mappings.\n"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HOSTNAME\tTARGET\tCREATED\tSTATUS\tID")
	for _, m := range mappings {
		status := "active"
		if !m.Active {
			status = "removed"
			if m.RemovedAt != nil {
				status = "removed " + m.RemovedAt.Format(time.RFC3339)
			}
		}
		fmt.Fprintf(w, "%s\t%s:%d\t%s\t%s\t%s\n",
			m.Hostname, m.TargetAddress, m.TargetPort, m.CreatedAt.Format(time.RFC3339), status, m.ID)
	}
	w.Flush()
	return b.String()
}

// FormatHealth renders a HealthStatus.
func FormatHealth(h HealthStatus) string {
	state := func(up bool) string {
		if up {
			return "reachable"
		}
		return "unreachable"
	}
	return fmt.Sprintf("DNS:   %s\nProxy: %s\n", state(h.DNS), state(h.Proxy))
}
