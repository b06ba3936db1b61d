package auth

// Display is the minimal surface the engine needs from the UI: an
// instruction screen while the user taps and a terminal notice. Rendering
// is outside this core; a build without a screen uses NopDisplay.
type Display interface {
	Instruction(heading, message string)
	Notice(text string)
}

// NopDisplay discards all output.
type NopDisplay struct{}

func (NopDisplay) Instruction(string, string) {}
func (NopDisplay) Notice(string)              {}

const (
	noticeAuthSuccess = "Card authentication successful"
	noticeAuthFailed  = "Card authentication failed"
)
