package auth

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptConfirm returns a ConfirmFn that asks for consent on the given
// terminal before any card contact. An empty or affirmative reply accepts;
// anything else, including a closed input, declines.
func PromptConfirm(in io.Reader, out io.Writer) ConfirmFn {
	reader := bufio.NewReader(in)
	return func() bool {
		fmt.Fprint(out, "Proceed with card authentication? [Y/n] ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "y", "yes":
			return true
		default:
			return false
		}
	}
}
