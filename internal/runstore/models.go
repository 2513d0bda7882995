package runstore

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of a run or stage.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusInterrupted marks a run that was canceled by the operator.
	StatusInterrupted Status = "interrupted"
)

// Run is one invocation of the pipeline.
type Run struct {
	ID         string
	ExpName    string
	Start      int
	Stop       int
	NJ         int
	ConfigPath string
	Status     Status
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Duration returns the elapsed time, measured to now for unfinished runs.
func (r Run) Duration() time.Duration {
	end := time.Now()
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	return end.Sub(r.StartedAt)
}

// StageRun is the ledger record of one stage within a run.
type StageRun struct {
	RunID            string
	Index            int
	Name             string
	Status           Status
	FailedSubJobs    int
	TotalSubJobs     int
	FailedPartitions map[string][]int
	ErrorKind        string
	Error            string
	StartedAt        time.Time
	FinishedAt       *time.Time
}

// encodePartitions renders a failure map as "dev:2,4;eval:1".
func encodePartitions(m map[string][]int) string {
	if len(m) == 0 {
		return ""
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	groups := make([]string, 0, len(names))
	for _, name := range names {
		nums := make([]string, len(m[name]))
		for i, p := range m[name] {
			nums[i] = strconv.Itoa(p)
		}
		groups = append(groups, name+":"+strings.Join(nums, ","))
	}
	return strings.Join(groups, ";")
}

func decodePartitions(s string) map[string][]int {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	out := make(map[string][]int)
	for _, group := range strings.Split(s, ";") {
		name, list, ok := strings.Cut(group, ":")
		if !ok {
			continue
		}
		for _, raw := range strings.Split(list, ",") {
			if p, err := strconv.Atoi(raw); err == nil {
				out[name] = append(out[name], p)
			}
		}
	}
	return out
}
