package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"goa.design/clue/log"
)

const logFileName = "nanocode.log"

// setupLogging attaches a JSON logger writing to dir/nanocode.log. The
// terminal belongs to the renderer, so nothing is logged to stdout. The
// returned func closes the file.
func setupLogging(ctx context.Context, dir string, debug bool) (context.Context, func(), error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ctx, func() {}, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return ctx, func() {}, fmt.Errorf("open log file: %w", err)
	}

	ctx = log.Context(ctx, log.WithOutput(f), log.WithFormat(log.FormatJSON))
	if debug {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}
	// Entries are written as they happen instead of on the first error.
	log.FlushAndDisableBuffering(ctx)

	return ctx, func() { f.Close() }, nil
}
