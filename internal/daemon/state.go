package daemon

// State is the lifecycle position of the poll loop.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateMirrorReady   State = "mirror_ready"
	StateTicking       State = "ticking"
	StateSleeping      State = "sleeping"
	StateStopped       State = "stopped"
)

// State returns the current lifecycle state.
func (d *Daemon) State() State {
	if s, ok := d.state.Load().(State); ok {
		return s
	}
	return StateUninitialized
}

func (d *Daemon) setState(s State) { d.state.Store(s) }
