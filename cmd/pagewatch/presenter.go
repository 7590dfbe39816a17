package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"gitlab.com/stephen-fox/pagewatch/checksum"
	"gitlab.com/stephen-fox/pagewatch/integrity"
	"gitlab.com/stephen-fox/pagewatch/memory"
	"gitlab.com/stephen-fox/pagewatch/patchscript"
)

// readLines sends each line read from r to lines and closes lines
// when r is exhausted. A read from a terminal cannot be interrupted,
// so callers must not wait for this function to return.
func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

// prompt writes question to w and waits for the next line. An empty
// string is returned once the input is closed or ctx is done.
func prompt(ctx context.Context, w io.Writer, question string, lines <-chan string) (string, bool) {
	fmt.Fprint(w, question)

	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-lines:
		if !ok {
			fmt.Fprintln(w)
			return "", false
		}

		return strings.TrimSpace(line), true
	}
}

type reportKey struct {
	base   memory.Address
	actual checksum.Fingerprint
}

// reportQueue hands reports from the monitor's goroutine to the
// presenter without blocking. It is only used by the monitor's
// goroutine.
type reportQueue struct {
	reports chan integrity.Report
	repeat  bool
	seen    map[reportKey]struct{}
	logger  *log.Logger
}

func newReportQueue(size int, repeat bool, logger *log.Logger) *reportQueue {
	return &reportQueue{
		reports: make(chan integrity.Report, size),
		repeat:  repeat,
		seen:    make(map[reportKey]struct{}),
		logger:  logger,
	}
}

// offer queues r. Unless repeat is set, a report for a region whose
// live fingerprint was already queued is ignored. A report is dropped
// when the queue is full; it is detected again on the next sweep.
func (o *reportQueue) offer(r integrity.Report) {
	key := reportKey{base: r.Region.Base, actual: r.Actual}

	if !o.repeat {
		if _, seen := o.seen[key]; seen {
			return
		}
	}

	select {
	case o.reports <- r:
		o.seen[key] = struct{}{}
	default:
		o.logger.Printf("report queue is full, dropping report for %s", r.Region.Base)
	}
}

// forgetClean forgets the reports queued for each region that was
// clean in result, so that a modification applied again after an
// undo is shown again.
func (o *reportQueue) forgetClean(result integrity.SweepResult) {
	if len(o.seen) == 0 || len(result.Clean) == 0 {
		return
	}

	clean := make(map[memory.Address]struct{}, len(result.Clean))
	for _, base := range result.Clean {
		clean[base] = struct{}{}
	}

	for key := range o.seen {
		if _, isClean := clean[key.base]; isClean {
			delete(o.seen, key)
		}
	}
}

// presenter prints reports and asks the operator to name the
// scripts of each one.
type presenter struct {
	out       io.Writer
	lines     <-chan string
	syntax    patchscript.Syntax
	inputDone bool
}

func (o *presenter) run(ctx context.Context, reports <-chan integrity.Report) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-reports:
			err := o.present(ctx, r)
			if err != nil {
				return err
			}
		}
	}
}

func (o *presenter) present(ctx context.Context, r integrity.Report) error {
	fmt.Fprintf(o.out, "%s\n", r)

	for _, c := range r.Changes {
		fmt.Fprintf(o.out, "change address: %s | original byte: 0x%02x | changed byte: 0x%02x\n",
			c.Address, c.Old, c.New)
	}

	var name string
	if !o.inputDone {
		var ok bool
		name, ok = prompt(ctx, o.out, "Script name? : ", o.lines)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}

			o.inputDone = true
		}
	}

	apply, undo := r.Named(name)

	err := patchscript.Render(o.out, apply, o.syntax)
	if err != nil {
		return fmt.Errorf("failed to render apply script - %w", err)
	}

	err = patchscript.Render(o.out, undo, o.syntax)
	if err != nil {
		return fmt.Errorf("failed to render undo script - %w", err)
	}

	fmt.Fprintln(o.out)

	return nil
}
