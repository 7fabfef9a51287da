// SPDX-License-Identifier: GPL-3.0-or-later

// Command conduit loads a YAML connector config file, wires each
// connector's source and sink halves in a self-loop (no separate
// pipeline-graph executor is in scope; see spec.md §1's non-goals), and
// runs until every source finishes or the process receives a signal.
//
// This mirrors the original cb.rs CLI harness (SPEC_FULL.md §6): a CB
// connector's source emits events, an auto-acking discard sink (not the
// cb connector's own command sink) acks them back, and the process exit
// code reports whether the circuit-breaker completion predicate was
// satisfied before the connector's timeout.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bassosimone/conduit"
	"github.com/bassosimone/conduit/connectors/cb"
	"github.com/bassosimone/conduit/connectors/tcp"
	"github.com/bassosimone/conduit/connectors/unix"
	"github.com/bassosimone/conduit/connectors/ws"
	"github.com/bassosimone/conduit/registry"
	sinkpkg "github.com/bassosimone/conduit/sink"
	sourcepkg "github.com/bassosimone/conduit/source"
)

// newRegistry returns a [*registry.Registry] pre-populated with every
// built-in connector builder.
func newRegistry() *registry.Registry {
	r := registry.NewRegistry()
	r.Register(cb.NewBuilder())
	r.Register(tcp.NewBuilder())
	r.Register(unix.NewBuilder())
	r.Register(ws.NewBuilder())
	return r
}

// instance bundles one connector's running halves so Run can wait for
// completion and, for a cb connector, read back its [*cb.Source] result.
type instance struct {
	id    string
	cbSrc *cb.Source
}

// Run parses args (the config file path), runs every declared connector,
// and returns the process exit code: 0 if every cb connector's
// completion predicate was satisfied (or no cb connector is present), 1
// otherwise. Diagnostics go to stderr.
func Run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("conduit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML connector config file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *configPath == "" {
		fmt.Fprintln(stderr, "conduit: -config is required")
		return 1
	}

	connectors, err := loadFile(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "conduit:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := newRegistry()
	cfg := conduit.NewConfig()

	var wg sync.WaitGroup
	var instances []*instance
	exitCode := 0

	for _, cc := range connectors {
		raw, err := cc.rawJSON()
		if err != nil {
			fmt.Fprintln(stderr, "conduit:", err)
			return 1
		}
		conn, err := reg.Build(cfg, cc.Type, raw)
		if err != nil {
			fmt.Fprintln(stderr, "conduit:", err)
			return 1
		}

		inst := &instance{id: cc.ID}
		wg.Add(1)
		go func(conn registry.Connector, inst *instance) {
			defer wg.Done()
			runConnector(ctx, cfg, conn, inst)
		}(conn, inst)

		instances = append(instances, inst)
	}

	wg.Wait()

	for _, inst := range instances {
		if inst.cbSrc == nil {
			continue
		}
		res := inst.cbSrc.Result()
		if res == nil {
			continue
		}
		fmt.Fprint(stderr, inst.cbSrc.Summary(*res))
		if res.ExitCode != 0 {
			exitCode = 1
		}
	}

	return exitCode
}

// runConnector builds the source and sink runtimes for one connector,
// wiring them in a self-loop, and blocks until the source runtime's Run
// returns.
func runConnector(ctx context.Context, cfg *conduit.Config, conn registry.Connector, inst *instance) {
	src, hasSrc, err := conn.CreateSource(ctx)
	if err != nil || !hasSrc {
		return
	}
	if cbSrc, ok := src.(*cb.Source); ok {
		inst.cbSrc = cbSrc
	}

	// The cb connector's own sink expects in-band "cb" commands routed
	// from elsewhere in a real pipeline (spec.md §4.9); looped back onto
	// its own source's raw line payloads it would never see one, so the
	// standalone CLI auto-acks a cb source instead of pairing it with
	// its native sink. Every other connector keeps its native sink,
	// which for a listener connector echoes a reply to the same
	// connection the event arrived on.
	var snk sinkpkg.Sink = discardSink{}
	if inst.cbSrc == nil {
		if s, hasSnk, err := conn.CreateSink(ctx); err == nil && hasSnk {
			snk = s
		}
	}

	// A connector-local context bounds both halves: once the source
	// runtime returns (Finished, or the outer ctx ended), the sink
	// runtime is told to stop too instead of waiting on the outer
	// context, so a self-contained run (e.g. a cb connector) exits on
	// its own rather than only on a signal.
	localCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	beacon := conduit.NewBeacon(localCtx)
	events := make(chan conduit.Event, cfg.QSize)
	feedback := make(chan sourcepkg.Feedback, cfg.QSize)
	cbActions := make(chan conduit.CbAction, cfg.QSize)

	srcRt := sourcepkg.NewRuntime(inst.id, src, cfg, beacon, events, feedback, cbActions)
	snkRt := sinkpkg.NewRuntime(inst.id, snk, cfg, events, feedback, cbActions)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		snkRt.Run(localCtx)
	}()

	srcRt.Run(localCtx)
	cancel()
	wg.Wait()
}
