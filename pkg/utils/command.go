package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/srand/capataz/pkg/log"
)

// A child process with captured stderr.
type Command struct {
	cmd    *exec.Cmd
	stderr bytes.Buffer
	logger *log.Logger
}

// Creates a command which is killed, together with its process group,
// when ctx is done.
func NewCommand(ctx context.Context, args ...string) *Command {
	c := &Command{
		cmd:    exec.CommandContext(ctx, args[0], args[1:]...),
		logger: log.Default(),
	}
	c.cmd.Stdout = os.Stdout
	c.cmd.Stderr = &c.stderr
	setProcessGroup(c.cmd)
	return c
}

func (c *Command) SetLogger(logger *log.Logger) {
	c.logger = logger
}

func (c *Command) SetStdin(r io.Reader) {
	c.cmd.Stdin = r
}

func (c *Command) SetStdout(w io.Writer) {
	c.cmd.Stdout = w
}

func (c *Command) SetEnv(env ...string) {
	c.cmd.Env = append(os.Environ(), env...)
}

// Runs the command to completion.
// A failed command returns a DetailedError carrying the child's stderr.
func (c *Command) Run() error {
	c.logger.Debug("Running", strings.Join(c.cmd.Args, " "))

	if err := c.cmd.Run(); err != nil {
		message := fmt.Sprintf("Command failed: %s (%v)", strings.Join(c.cmd.Args, " "), err)
		c.logger.Debug(message)
		return NewDetailedError(message, c.stderr.String())
	}
	return nil
}
