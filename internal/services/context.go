package services

import "context"

type contextKey string

const (
	stageKey     contextKey = "stage"
	branchKey    contextKey = "branch"
	partitionKey contextKey = "partition"
	runIDKey     contextKey = "run_id"
)

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithBranch annotates context with the fan-out branch (dataset split) name.
func WithBranch(ctx context.Context, branch string) context.Context {
	if branch == "" {
		return ctx
	}
	return context.WithValue(ctx, branchKey, branch)
}

// BranchFromContext returns the branch name if present.
func BranchFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(branchKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithPartition annotates context with the 1-based sub-job partition index.
func WithPartition(ctx context.Context, partition int) context.Context {
	return context.WithValue(ctx, partitionKey, partition)
}

// PartitionFromContext extracts the partition index if present.
func PartitionFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(partitionKey)
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}

// WithRunID annotates context with the pipeline run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
