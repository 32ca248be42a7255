// Command student-management runs and installs the Student Management System.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sorathiyaom089/Student-Management-System/pkg/config"
)

// errCheckFailed signals a failed probe; the command already printed why.
var errCheckFailed = errors.New("check failed")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return exitCode(err)
	}
	return 0
}

// exitCode maps errors to process exit codes: 2 for configuration errors,
// 1 otherwise.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case config.IsConfigError(err):
		return 2
	default:
		return 1
	}
}
