package coordinator

// State is the controller's lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateSolo
	StateCoordinating
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateSolo:
		return "SOLO"
	case StateCoordinating:
		return "COORDINATING"
	case StateDestroyed:
		return "DESTROYED"
	}
	return "UNKNOWN"
}

// Role is this peer's position relative to the elected leader.
type Role int

const (
	RoleNone Role = iota
	RoleLeader
	RoleFollower
)

func (r Role) String() string {
	switch r {
	case RoleLeader:
		return "LEADER"
	case RoleFollower:
		return "FOLLOWER"
	}
	return "NONE"
}
