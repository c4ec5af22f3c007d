// Package runner abstracts external command execution so pipeline stages
// can be tested without a toolchain or container engine on the host.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command describes one external process invocation. `Env` entries are
// appended to the host environment.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (cmd *Command) String() string {
	return strings.Join(append([]string{cmd.Name}, cmd.Args...), " ")
}

// Runner runs commands. Implementations must be safe for concurrent use;
// variant pipelines run in parallel.
type Runner interface {
	Run(ctx context.Context, cmd *Command) error
}

// ExecRunner runs commands on the host via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd *Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("running `%s`: %w", cmd.Name, err)
	}
	return nil
}

var _ Runner = ExecRunner{}
