package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"gitlab.com/stephen-fox/pagewatch/integrity"
	"gitlab.com/stephen-fox/pagewatch/memory"
	"gitlab.com/stephen-fox/pagewatch/patchscript"
	"gitlab.com/stephen-fox/pagewatch/process"
	"golang.org/x/sync/errgroup"
)

const (
	moduleArg       = "m"
	configFileArg   = "c"
	pollIntervalArg = "i"
	syntaxArg       = "s"
	archArg         = "a"
	boundaryArg     = "b"
	repeatArg       = "r"
	verboseArg      = "v"
	helpArg         = "h"

	reportQueueSize   = 16
	exitCheckInterval = time.Second

	appName = "pagewatch"
	usage   = appName + `
DESCRIPTION
  Watches the read-only and executable pages of a module loaded in another
  process. When a page's contents change, the modified bytes are printed
  along with a pair of routines that re-apply and undo the modification.

  The module name and the name of each pair of routines are read from
  stdin. An empty module name refers to the process' main executable.
  An empty routine name results in "` + patchscript.DefaultName + `".

USAGE
  ` + appName + ` [options] PID

EXAMPLES
  Watch the main executable of process 1234:
    $ ` + appName + ` -` + moduleArg + ` '' 1234

  Watch libc and annotate changes with x86_64 disassembly:
    $ ` + appName + ` -` + moduleArg + ` libc.so.6 -` + archArg + ` x86_64 1234

  Load options from a file:
    $ ` + appName + ` -` + configFileArg + ` pagewatch.yaml

CONFIG FILE
  pid: 1234
  module: libc.so.6
  poll_interval: 500ms
  syntax: go
  arch: x86_64
  boundary: clip
  protections: [r-x, r--]
  repeat: false
  verbose: true

OPTIONS
`
)

func main() {
	log.SetFlags(0)

	err := mainWithError()
	if err != nil {
		log.Fatalln("fatal:", err)
	}
}

func mainWithError() error {
	module := flag.String(
		moduleArg,
		"",
		"The module to watch (prompted for if not specified)")

	configFilePath := flag.String(
		configFileArg,
		"",
		"Optional YAML config file")

	pollInterval := flag.Duration(
		pollIntervalArg,
		defaultPollInterval,
		"The pause between two sweeps")

	syntax := flag.String(
		syntaxArg,
		string(patchscript.SyntaxC),
		fmt.Sprintf("The routine syntax %v", patchscript.Syntaxes()))

	arch := flag.String(
		archArg,
		"",
		"Annotate changes in executable pages with disassembly\n"+
			"for this platform ('x86_32', 'x86_64', 'arm')")

	boundary := flag.String(
		boundaryArg,
		memory.BoundaryInclude.String(),
		"What to do with pages that cross the module's bounds\n"+
			"('include', 'clip', 'exclude')")

	repeat := flag.Bool(
		repeatArg,
		false,
		"Print a change every time it is detected rather than once")

	verbose := flag.Bool(
		verboseArg,
		false,
		"Enable verbose logging")

	help := flag.Bool(
		helpArg,
		false,
		"Display this information")

	flag.Parse()

	if *help {
		os.Stderr.WriteString(usage)
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := defaultConfig()

	if *configFilePath != "" {
		var err error
		cfg, err = loadConfigFile(*configFilePath)
		if err != nil {
			return err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case moduleArg:
			cfg.Module = *module
			cfg.moduleSet = true
		case pollIntervalArg:
			cfg.PollInterval = *pollInterval
		case syntaxArg:
			cfg.Syntax = *syntax
		case archArg:
			cfg.Arch = *arch
		case boundaryArg:
			cfg.Boundary = *boundary
		case repeatArg:
			cfg.Repeat = *repeat
		case verboseArg:
			cfg.Verbose = *verbose
		}
	})

	switch flag.NArg() {
	case 0:
		if cfg.PID == 0 {
			return fmt.Errorf("please specify a pid")
		}
	case 1:
		pid, err := strconv.Atoi(flag.Arg(0))
		if err != nil {
			return fmt.Errorf("failed to parse pid - %w", err)
		}

		cfg.PID = pid
	default:
		return fmt.Errorf("please specify exactly one pid - got %d arguments", flag.NArg())
	}

	err := cfg.validate()
	if err != nil {
		return err
	}

	var optLogger *log.Logger
	if cfg.Verbose {
		optLogger = log.Default()
	}

	return watch(cfg, os.Stdin, os.Stdout, optLogger)
}

func watch(cfg config, in io.Reader, out io.Writer, optLogger *log.Logger) error {
	syntax, err := cfg.syntax()
	if err != nil {
		return err
	}

	enumerator, err := cfg.enumerator(optLogger)
	if err != nil {
		return err
	}

	disassembler, err := cfg.disassembler()
	if err != nil {
		return fmt.Errorf("failed to create disassembler - %w", err)
	}

	proc, err := process.Open(cfg.PID)
	if err != nil {
		return fmt.Errorf("failed to attach to process %d - %w", cfg.PID, err)
	}
	defer proc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctx, cancelFn := process.ExitCtx(ctx, proc, exitCheckInterval)
	defer cancelFn()

	lines := make(chan string)
	go readLines(in, lines)

	module := cfg.Module
	if !cfg.moduleSet {
		module, _ = prompt(ctx, out, "Module name: ", lines)
		if ctx.Err() != nil {
			return nil
		}
	}

	queue := newReportQueue(reportQueueSize, cfg.Repeat, log.Default())

	monitor, err := integrity.NewMonitor(integrity.Config{
		Target:       proc,
		Module:       module,
		Enumerator:   enumerator,
		PollInterval: cfg.PollInterval,
		Disassembler: disassembler,
		OnReport:     queue.offer,
		OnSweep:      queue.forgetClean,
		OnError: func(err error) {
			log.Printf("sweep error: %v", err)
		},
		Logger: optLogger,
	})
	if err != nil {
		return err
	}

	err = monitor.Init()
	if err != nil {
		return fmt.Errorf("failed to initialize monitor - %w", err)
	}

	snapshots := monitor.Snapshots()

	fmt.Fprintf(out, "page list initialized: watching %d page range(s), 0x%x bytes\n",
		snapshots.Len(), snapshots.Size())

	p := &presenter{
		out:    out,
		lines:  lines,
		syntax: syntax,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return monitor.Run(groupCtx)
	})

	group.Go(func() error {
		return p.run(groupCtx, queue.reports)
	})

	err = group.Wait()
	if err != nil {
		return err
	}

	if !proc.Alive() {
		log.Printf("process %d exited", proc.PID())
	}

	return nil
}
