package coordinator

import "github.com/dreamware/xvoid/internal/cluster"

// Summarize derives a task's aggregate status from its fragments. Pending
// covers both pending and assigned fragments. The task is terminal once
// completed + failed == total: failed if any fragment failed, completed
// otherwise.
func Summarize(task *cluster.Task) cluster.TaskStatusSummary {
	sum := cluster.TaskStatusSummary{
		TrackingID: task.TrackingID,
		Total:      task.TotalFragments,
	}
	for _, f := range task.Fragments {
		switch f.Status {
		case cluster.FragmentCompleted:
			sum.Completed++
		case cluster.FragmentFailed:
			sum.Failed++
		}
	}
	sum.Pending = sum.Total - sum.Completed - sum.Failed

	switch {
	case sum.Completed+sum.Failed < sum.Total:
		sum.State = cluster.TaskInProgress
	case sum.Failed > 0:
		sum.State = cluster.TaskFailed
	default:
		sum.State = cluster.TaskCompleted
	}
	return sum
}
