// Command vidcaps resolves and exercises video codec capability tables.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vidcaps:", err)

		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			// Flag and argument errors from cobra.
			os.Exit(cli.ExitCommandError)
		}
		os.Exit(exitErr.Code)
	}
}
