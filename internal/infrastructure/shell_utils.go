package infrastructure

import "github.com/alessio/shellescape"

// CommandLine renders a command for logs so it can be pasted into a POSIX shell.
// exec.Command never goes through a shell; this is for display only.
func CommandLine(binary string, args ...string) string {
	return shellescape.QuoteCommand(append([]string{binary}, args...))
}
