package testsupport

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/weberc2/releaser/pkg/runner"
)

// RunnerFake records every command it's asked to run. `Callback`, when set,
// decides each command's behavior; otherwise every command succeeds without
// doing anything.
type RunnerFake struct {
	Callback func(*runner.Command) error

	mu       sync.Mutex
	commands []*runner.Command
}

func (rf *RunnerFake) Run(ctx context.Context, cmd *runner.Command) error {
	rf.mu.Lock()
	rf.commands = append(rf.commands, cmd)
	rf.mu.Unlock()
	if rf.Callback != nil {
		return rf.Callback(cmd)
	}
	return nil
}

// Commands returns a copy of the recorded commands in the order they ran.
func (rf *RunnerFake) Commands() []*runner.Command {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return append([]*runner.Command(nil), rf.commands...)
}

// CommandsNamed returns the recorded commands whose program name matches.
func (rf *RunnerFake) CommandsNamed(name string) []*runner.Command {
	var out []*runner.Command
	for _, cmd := range rf.Commands() {
		if cmd.Name == name {
			out = append(out, cmd)
		}
	}
	return out
}

// ToolchainFake mimics a `go build` invocation: for every package named on
// the command line it creates a file in the `-o` output directory, named
// after the package's base name and containing the package path. Commands
// that aren't builds succeed without side effects.
func ToolchainFake(cmd *runner.Command) error {
	if len(cmd.Args) == 0 || cmd.Args[0] != "build" {
		return nil
	}

	var outputDir string
	var packages []string
	for i := 1; i < len(cmd.Args); i++ {
		arg := cmd.Args[i]
		if arg == "-o" {
			if i+1 >= len(cmd.Args) {
				return fmt.Errorf("`-o` flag missing value")
			}
			i++
			outputDir = cmd.Args[i]
			continue
		}
		if len(arg) > 0 && arg[0] == '-' {
			continue
		}
		packages = append(packages, arg)
	}

	if outputDir == "" {
		return fmt.Errorf("missing `-o` flag: %s", cmd)
	}
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(cmd.Dir, outputDir)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, pkg := range packages {
		target := filepath.Join(outputDir, path.Base(pkg))
		if err := os.WriteFile(target, []byte(pkg), 0755); err != nil {
			return fmt.Errorf("writing `%s`: %w", target, err)
		}
	}

	return nil
}
