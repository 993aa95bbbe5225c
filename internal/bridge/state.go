package bridge

// State is a step of the per-request pipeline.
type State int

const (
	StateReceived State = iota
	StateVerified
	StateClassified
	StateChallengeAck
	StateIgnored
	StateSessionResolved
	StateAgentInvoked
	StateReplied
	StateDone
	StateError
)

var stateNames = [...]string{
	StateReceived:        "RECEIVED",
	StateVerified:        "VERIFIED",
	StateClassified:      "CLASSIFIED",
	StateChallengeAck:    "CHALLENGE_ACK",
	StateIgnored:         "IGNORED",
	StateSessionResolved: "SESSION_RESOLVED",
	StateAgentInvoked:    "AGENT_INVOKED",
	StateReplied:         "REPLIED",
	StateDone:            "DONE",
	StateError:           "ERROR",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == StateDone || s == StateError }

// ErrorKind classifies why a request did not end in a reply.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindAuthentication
	KindMalformedPayload
	KindNotApplicable
	KindDependency
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAuthentication:
		return "authentication_failure"
	case KindMalformedPayload:
		return "malformed_payload"
	case KindNotApplicable:
		return "not_applicable"
	case KindDependency:
		return "dependency_failure"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}
