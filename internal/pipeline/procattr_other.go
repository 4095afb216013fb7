//go:build !unix

package pipeline

import "os/exec"

// Process groups are unavailable; cancellation falls back to killing the
// direct child.
func setProcessGroup(cmd *exec.Cmd)   {}
func killGroupOnCancel(cmd *exec.Cmd) {}
