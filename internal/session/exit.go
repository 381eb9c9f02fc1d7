package session

import "os/exec"

// exitCode extracts a process exit code from the error returned by
// exec.Cmd.Wait, treating a nil error (clean exit) as 0.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
