// Package sandbox applies a platform-specific confinement profile to a
// run_shell child process before it executes. Confinement is advisory
// beyond workspace path confinement, which the caller enforces
// separately: this package narrows what the process can do at the
// syscall level (Linux) or via an inline profile (macOS); other
// platforms get a no-op.
package sandbox

import "os/exec"

// Apply configures cmd to run inside the platform's sandbox profile.
// It is safe to call on every platform; platforms with no sandbox
// support leave cmd unmodified.
func Apply(cmd *exec.Cmd) error {
	return apply(cmd)
}

// Supported reports whether this platform has a real sandbox profile
// (as opposed to the confinement-only no-op).
func Supported() bool {
	return supported
}
