package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dreamware/xvoid/internal/cluster"
)

func TestSummarize(t *testing.T) {
	states := func(ss ...cluster.FragmentState) *cluster.Task {
		task := &cluster.Task{TrackingID: "t", TotalFragments: len(ss)}
		for _, s := range ss {
			task.Fragments = append(task.Fragments, cluster.FragmentStatus{Status: s})
		}
		return task
	}
	const (
		p = cluster.FragmentPending
		a = cluster.FragmentAssigned
		c = cluster.FragmentCompleted
		f = cluster.FragmentFailed
	)

	tests := []struct {
		name string
		task *cluster.Task
		want cluster.TaskStatusSummary
	}{
		{"all pending", states(p, p), cluster.TaskStatusSummary{State: cluster.TaskInProgress, Total: 2, Pending: 2}},
		{"assigned counts as pending", states(a, c), cluster.TaskStatusSummary{State: cluster.TaskInProgress, Total: 2, Pending: 1, Completed: 1}},
		{"all completed", states(c, c, c), cluster.TaskStatusSummary{State: cluster.TaskCompleted, Total: 3, Completed: 3}},
		{"failure with work outstanding", states(f, a), cluster.TaskStatusSummary{State: cluster.TaskInProgress, Total: 2, Pending: 1, Failed: 1}},
		{"terminal with failure", states(c, f, c), cluster.TaskStatusSummary{State: cluster.TaskFailed, Total: 3, Completed: 2, Failed: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want.TrackingID = "t"
			got := Summarize(tt.task)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.Total, got.Completed+got.Pending+got.Failed)
		})
	}
}
