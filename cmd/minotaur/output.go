package main

import (
	"context"
	"fmt"
	"io"

	"github.com/giannitedesco/minotaur/internal/di/providers"
	"github.com/giannitedesco/minotaur/pkg/inotify"
)

// printFlags writes the summary of watch flags shown by --list-flags.
func printFlags(out io.Writer) {
	kind := inotify.FlagKind(-1)
	for _, f := range inotify.Flags() {
		if !f.Shown {
			continue
		}
		if f.Kind != kind {
			if kind != -1 {
				fmt.Fprintln(out)
			}
			kind = f.Kind
			fmt.Fprintf(out, "%s flags:\n", kind)
		}
		fmt.Fprintf(out, " - %s: %s\n", f.Name, f.Help)
	}
}

func printRegistrations(out io.Writer, registered []providers.Registration) {
	for _, r := range registered {
		fmt.Fprintf(out, "%s: wd=%d\n", r.Path, r.Descriptor.WD())
	}
}

// printEvents prints events until ctx is done or the stream ends. It
// returns the read error that ended the stream, if any.
func printEvents(ctx context.Context, out io.Writer, events <-chan inotify.Event, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return err
		case ev, ok := <-events:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}
			fmt.Fprintln(out, ev)
		}
	}
}
