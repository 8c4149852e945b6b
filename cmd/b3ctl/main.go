// b3ctl encodes and decodes B3 trace-context headers.
//
// Usage:
//
//	b3ctl encode --trace-id T --span-id S [--sampled] [--encoding b3|b3multi]
//	b3ctl decode [--encoding auto|b3|b3multi] [--file headers.yaml] [key=value ...]
//	b3ctl fields [--encoding b3|b3multi]
//
// Exit codes:
//
//	0: success
//	1: nothing could be encoded, or the headers were rejected
//	2: bad arguments
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// Set with -ldflags "-X main.Version=...".
var Version = "0.1.0-dev"

func main() {
	os.Exit(run(context.Background(), os.Args))
}

func run(ctx context.Context, args []string) int {
	app := createApp(os.Stdout)
	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			return ec.ExitCode()
		}
		return 2
	}
	return 0
}
