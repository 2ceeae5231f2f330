//go:build darwin

package sandbox

import (
	"fmt"
	"os/exec"
)

const supported = true

// MaybeReexec is a no-op on Darwin: apply wraps the child in
// sandbox-exec directly rather than re-invoking the aigent binary
// itself, so main() has nothing to intercept at startup.
func MaybeReexec() {}

// darwinProfile is an inline sandbox-exec profile allowing workspace
// read/write, /tmp, standard dynamic libraries, outbound TCP on 80/443,
// and ordinary process operations.
const darwinProfile = `(version 1)
(deny default)
(allow process-fork process-exec)
(allow file-read* file-write*
  (subpath (param "WORKSPACE"))
  (subpath "/tmp")
  (subpath "/usr/lib")
  (subpath "/System/Library"))
(allow network-outbound
  (remote tcp "*:80")
  (remote tcp "*:443"))
(allow mach-lookup)
(allow sysctl-read)
`

// apply wraps cmd with sandbox-exec and the inline profile above,
// parameterized with the target workspace directory.
func apply(cmd *exec.Cmd) error {
	workspace := cmd.Dir
	if workspace == "" {
		workspace = "."
	}
	args := append([]string{"-p", darwinProfile, "-D", "WORKSPACE=" + workspace, cmd.Path}, cmd.Args[1:]...)
	sandboxExec, err := exec.LookPath("sandbox-exec")
	if err != nil {
		return fmt.Errorf("sandbox: sandbox-exec not found: %w", err)
	}
	cmd.Path = sandboxExec
	cmd.Args = append([]string{sandboxExec}, args...)
	return nil
}
