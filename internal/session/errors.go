package session

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
	// ErrIllegalAction is the synchronous rejection of a locally invalid
	// action. Nothing is submitted and no state changes.
	ErrIllegalAction staticErr = "illegal action"
	// ErrNotYourTurn rejects an action from a seat that is not to move.
	ErrNotYourTurn staticErr = "not your turn"
	// ErrSessionOver rejects actions once the session reached a terminal
	// state.
	ErrSessionOver staticErr = "session is over"
	// ErrClosed marks use of a runner after Close.
	ErrClosed staticErr = "session runner closed"
)
