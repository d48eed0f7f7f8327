package chain

// Status is the lifecycle state of a chain or of a single node.
type Status string

const (
	StatusReady            Status = "READY"
	StatusRunning          Status = "RUNNING"
	StatusSuspend          Status = "SUSPEND"
	StatusError            Status = "ERROR"
	StatusFinishedNormal   Status = "FINISHED_NORMAL"
	StatusFinishedAbnormal Status = "FINISHED_ABNORMAL"
)

// Finished reports whether s is terminal.
func (s Status) Finished() bool {
	return s == StatusFinishedNormal || s == StatusFinishedAbnormal
}

// halted reports whether a chain in status s must stop extending branches.
func (s Status) halted() bool {
	return s == StatusError || s.Finished()
}

func (s Status) String() string {
	return string(s)
}
