package state

// RunStatus is the lifecycle state of a job run. A run is created as pending,
// moves to processing only through the worker's atomic claim, and ends in
// completed or failed. Runs are never deleted.
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

func (s RunStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transitions are allowed from s.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var AllRunStatuses = []RunStatus{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

type Transition struct {
	From RunStatus
	To   RunStatus
}

// ValidTransitions is the full run state machine. pending -> failed covers the
// fast-fail path for runs whose schedule was deactivated before they were
// claimed.
var ValidTransitions = []Transition{
	{From: StatusPending, To: StatusProcessing},
	{From: StatusPending, To: StatusFailed},
	{From: StatusProcessing, To: StatusCompleted},
	{From: StatusProcessing, To: StatusFailed},
}

func IsValidTransition(from, to RunStatus) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// JobType selects which collaborators a run is dispatched to.
type JobType string

const (
	JobCollection           JobType = "collection"
	JobScoring              JobType = "scoring"
	JobCollectionAndScoring JobType = "collection_and_scoring"
	JobCollectionRetry      JobType = "collection_retry"
	JobScoringRetry         JobType = "scoring_retry"
)

func (t JobType) String() string {
	return string(t)
}

var AllJobTypes = []JobType{
	JobCollection,
	JobScoring,
	JobCollectionAndScoring,
	JobCollectionRetry,
	JobScoringRetry,
}

func (t JobType) Valid() bool {
	for _, jt := range AllJobTypes {
		if t == jt {
			return true
		}
	}
	return false
}

// ExecutionStatus is the state of a collaborator-owned execution record. The
// reconciler only ever moves running executions to completed or failed; it
// never touches their business payload.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

func (s ExecutionStatus) String() string {
	return string(s)
}
