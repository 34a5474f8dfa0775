package publisher

// State is the lifecycle position of a publisher.
type State int

const (
	Created State = iota
	Starting
	Running
	Restarting
	Stopping
	Stopped
	Failed
)

func (s State) String() string {
	if s < Created || s > Failed {
		return "unknown"
	}
	return [...]string{"created", "starting", "running", "restarting", "stopping", "stopped", "failed"}[s]
}

// Terminal reports whether the publisher can never run again.
func (s State) Terminal() bool {
	return s == Stopped || s == Failed
}
