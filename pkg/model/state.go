package model

// ThreadState represents the scheduling state of a thread.
type ThreadState string

const (
	ThreadStateInitial   ThreadState = "INITIAL"
	ThreadStateReady     ThreadState = "READY"
	ThreadStateRunning   ThreadState = "RUNNING"
	ThreadStateBlocked   ThreadState = "BLOCKED"
	ThreadStateSleeping  ThreadState = "SLEEPING"
	ThreadStateSuspended ThreadState = "SUSPENDED"
	ThreadStateDeath     ThreadState = "DEATH"
)

// String returns the string representation of the thread state.
func (s ThreadState) String() string {
	return string(s)
}

// IsRunnable returns true if the thread is either running or waiting on a run queue.
func (s ThreadState) IsRunnable() bool {
	return s == ThreadStateReady || s == ThreadStateRunning
}

// IsWaiting returns true if the thread is parked outside the run queues.
func (s ThreadState) IsWaiting() bool {
	switch s {
	case ThreadStateBlocked, ThreadStateSleeping, ThreadStateSuspended:
		return true
	}
	return false
}
