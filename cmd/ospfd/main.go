// Command ospfd runs an OSPFv2 link-state routing daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ddddddO/ospfd"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := ospfd.LoadFileConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ospfd: load config:", err)
		return 1
	}

	ifaceNames := make([]string, 0, len(cfg.Interfaces))
	for _, i := range cfg.Interfaces {
		ifaceNames = append(ifaceNames, i.Name)
	}

	transport, err := ospfd.NewPlatformTransport(ifaceNames)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ospfd: open transport:", err)
		return 1
	}
	defer transport.Close()

	routes := ospfd.NewPlatformRouteInstaller()

	engineCfg, err := cfg.ToEngineConfig(transport, routes)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ospfd: configure engine:", err)
		return 1
	}

	engine, err := ospfd.NewEngine(engineCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ospfd: create engine:", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ospfd: start engine:", err)
		return 1
	}

	<-ctx.Done()
	engine.Stop()
	return 0
}
