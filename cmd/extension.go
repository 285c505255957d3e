package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
)

// ExtensionPrefix prefixes the name of external subcommand binaries.
const ExtensionPrefix = "dcat-"

// RunExtension attempts to find and execute an external dcat-<subcommand> binary.
// It returns (true, exitCode) if an extension was found and executed,
// and (false, 0) if no extension was found.
//
// The global flags are passed to the extension as their DCA_* environment
// variables.
func RunExtension(subcommand string, args []string) (bool, int) {
	name := ExtensionPrefix + subcommand
	lp, err := exec.LookPath(name)
	if err != nil {
		return false, 0
	}

	cmd := exec.Command(lp, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), extensionEnv(flag.CommandLine)...)

	if err := cmd.Run(); err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return true, exitError.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing external command %q: %v\n", name, err)
		return true, 1
	}
	return true, 0
}

// extensionEnv returns the flags of fs as environment variables.
func extensionEnv(fs *flag.FlagSet) []string {
	var env []string
	fs.VisitAll(func(f *flag.Flag) {
		env = append(env, EnvName(f.Name)+"="+f.Value.String())
	})
	return env
}
