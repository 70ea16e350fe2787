package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/whatson/internal/cli"
	"horse.fit/whatson/internal/globaltime"
)

func runArchive(args []string) int {
	fs := flag.NewFlagSet("archive", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "archive does not accept positional arguments")
		return 2
	}

	ctx, cancel, _, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	archived, err := pool.ArchivePastEvents(ctx, globaltime.UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Archive failed: %v\n", err)
		return 1
	}

	fmt.Printf("archived=%d\n", archived)
	return 0
}
