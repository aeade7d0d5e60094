// Package election picks a leader from a set of peer ids without any
// message exchange. Every peer applying Elect to the same set agrees.
package election

// Elect returns the lexicographically smallest id. The result depends only
// on the set of ids, never on their order. It returns false for an empty
// set.
func Elect(ids []string) (string, bool) {
	if len(ids) == 0 {
		return "", false
	}
	leader := ids[0]
	for _, id := range ids[1:] {
		if id < leader {
			leader = id
		}
	}
	return leader, true
}

// Outcome describes how an election changed this peer's role.
type Outcome struct {
	Leader    string
	IsLeader  bool
	WasLeader bool
}

// Became reports whether this peer just took leadership.
func (o Outcome) Became() bool { return o.IsLeader && !o.WasLeader }

// Lost reports whether this peer just gave up leadership.
func (o Outcome) Lost() bool { return !o.IsLeader && o.WasLeader }

// Run elects a leader among ids on behalf of selfID, given the previously
// known leader.
func Run(selfID, previous string, ids []string) Outcome {
	leader, ok := Elect(ids)
	if !ok {
		leader = selfID
	}
	return Outcome{
		Leader:    leader,
		IsLeader:  leader == selfID,
		WasLeader: previous == selfID,
	}
}
