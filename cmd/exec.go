package cmd

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"runtime"

	"netsess/util"
)

// runExec wires conn to a child process's stdio: -e/-c mode hands the
// byte stream to a program rather than framing it through a session,
// so it bypasses the session core entirely. The child's stdin/stdout
// go through pipes and BidirectionalCopy rather than the raw socket,
// so a cancelled context tears the pair down even while the child
// ignores signals; stderr shares the socket directly.
func runExec(ctx context.Context, execProgram, command string, conn net.Conn, logger *util.Logger) error {
	var c *exec.Cmd
	switch {
	case command != "":
		if runtime.GOOS == "windows" {
			c = exec.CommandContext(ctx, "cmd.exe", "/C", command)
		} else {
			c = exec.CommandContext(ctx, "/bin/sh", "-c", command)
		}
	case execProgram != "":
		c = exec.CommandContext(ctx, execProgram)
	default:
		return fmt.Errorf("no command specified for exec mode")
	}

	stdin, err := c.StdinPipe()
	if err != nil {
		return fmt.Errorf("exec stdin pipe: %w", err)
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		return fmt.Errorf("exec stdout pipe: %w", err)
	}
	c.Stderr = conn

	logger.Debug("exec: %s", c.String())

	if err := c.Start(); err != nil {
		return fmt.Errorf("exec %q: %w", c.Path, err)
	}

	copyErr := util.BidirectionalCopy(ctx, conn, stdout, stdin)
	stdin.Close()

	if err := c.Wait(); err != nil {
		return fmt.Errorf("exec %q: %w", c.Path, err)
	}
	return copyErr
}
