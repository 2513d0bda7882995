package stage

import (
	"fmt"
	"strings"
)

// Health summarizes whether a stage could run right now.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Readiness resolves every tool of s with lookPath (typically exec.LookPath)
// and reports the ones that cannot be found.
func (s Stage) Readiness(lookPath func(string) (string, error)) Health {
	var missing []string
	for _, tool := range s.Tools {
		if strings.TrimSpace(tool) == "" {
			missing = append(missing, "<unset>")
			continue
		}
		if _, err := lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return Unhealthy(s.Name, fmt.Sprintf("missing tools: %s", strings.Join(missing, ", ")))
	}
	return Healthy(s.Name)
}
