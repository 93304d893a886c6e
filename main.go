package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"ember/app"
	"ember/hal"
	"ember/internal/buildinfo"
)

func main() {
	var (
		cfg        hal.HeadlessConfig
		scriptPath string
		virtual    bool
		stdin      bool
		trace      bool
		stacks     bool
		version    bool
	)
	flag.StringVar(&scriptPath, "script", "", "Boot script file (default: built-in script).")
	flag.BoolVar(&virtual, "virtual", false, "Run on a virtual clock that skips idle time.")
	flag.DurationVar(&cfg.Host.Tick, "tick", hal.DefaultTick, "Clock interrupt period.")
	flag.DurationVar(&cfg.Timeout, "timeout", 0, "Stop the machine after this wall time (0 = no limit).")
	flag.BoolVar(&stdin, "stdin", false, "Feed standard input into a terminal unit.")
	flag.IntVar(&cfg.InputUnit, "term", 0, "Terminal unit fed by -stdin.")
	flag.BoolVar(&trace, "trace", false, "Print kernel trace events.")
	flag.BoolVar(&stacks, "stacks", false, "Print the Go stack on a kernel halt.")
	flag.BoolVar(&version, "version", false, "Print the version and exit.")
	flag.Parse()

	if version {
		fmt.Println(buildinfo.String())
		return
	}

	acfg := app.Config{Stacks: stacks}
	if scriptPath != "" {
		src, err := os.ReadFile(scriptPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		acfg.Script = string(src)
		if _, err := app.ParseScript(strings.NewReader(acfg.Script)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	if virtual {
		cfg.Host.Clock = hal.NewVirtualClock()
	}
	if stdin {
		cfg.Input = os.Stdin
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code, err := hal.RunHeadless(ctx, cfg, func(h *hal.Host) {
		if trace {
			acfg.Kernel.Trace = slog.New(slog.NewTextHandler(hal.LineWriter(h.Console()), &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}))
		}
		boot, err := app.New(h, acfg)
		if err != nil {
			h.Console().WriteLineString(err.Error())
			h.Halt(2)
		}
		boot()
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(code)
}
