package auth

// State is the authentication attempt's flow status. The engine owns the
// cell; the driver loop reads it through Status to decide when to stop.
type State int

const (
	// StateInit is the idle state before an initiate request.
	StateInit State = iota
	// StateUserConfirmed is entered once the initiate request is accepted.
	StateUserConfirmed
	// StateSerialSigned is entered after the card signed its serial.
	StateSerialSigned
	// StateChallengeSigned is entered after the card signed the challenge.
	StateChallengeSigned
	// StatePairingDone is the terminal success state.
	StatePairingDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateUserConfirmed:
		return "user_confirmed"
	case StateSerialSigned:
		return "serial_signed"
	case StateChallengeSigned:
		return "challenge_signed"
	case StatePairingDone:
		return "pairing_done"
	default:
		return "unknown"
	}
}
