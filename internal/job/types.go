package job

// Status is the lifecycle state of a server-side job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the job has finished and will send no
// further progress.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Snapshot is the latest observed progress of a tracked job.
type Snapshot struct {
	Progress    int    `json:"progress"`
	CurrentStep string `json:"current_step"`
	Status      Status `json:"status"`
}

// progressFrame is the wire payload of a job progress push. The status
// field is optional; servers that omit it only report percent and step.
type progressFrame struct {
	Progress    int    `json:"progress"`
	CurrentStep string `json:"current_step"`
	Status      Status `json:"status"`
}
