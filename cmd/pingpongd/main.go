// Command pingpongd is a thin demo wiring runtime.Server to a trivial
// ping/pong message handler: every type-1 (ping) message received is
// answered with a type-2 (pong) carrying the same payload back on the
// same connection.
//
// This is deliberately not a showcase of any particular wire schema
// (the framing package's fixed header is the only format in scope);
// the message-type constants below exist solely so this demo has
// something to dispatch on.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/hioload-ioprovider/config"
	"github.com/momentics/hioload-ioprovider/framing"
	"github.com/momentics/hioload-ioprovider/log"
	"github.com/momentics/hioload-ioprovider/provider"
	"github.com/momentics/hioload-ioprovider/provider/iouring"
	"github.com/momentics/hioload-ioprovider/provider/readiness"
	"github.com/momentics/hioload-ioprovider/provider/rio"
	"github.com/momentics/hioload-ioprovider/runtime"
)

const (
	msgTypePing uint32 = 1
	msgTypePong uint32 = 2
)

func newProvider(flavor config.Flavor) provider.Provider {
	switch flavor {
	case config.FlavorIOURing:
		return iouring.New()
	case config.FlavorRIO:
		return rio.New()
	default:
		return readiness.New()
	}
}

func main() {
	addr := flag.String("addr", ":9443", "listen address")
	flavor := flag.String("flavor", "", "provider flavor override (rio|iouring|epoll|kqueue)")
	flag.Parse()

	cfg := config.New()
	if *flavor != "" {
		cfg.ProviderFlavor = config.Flavor(*flavor)
	}

	prov := newProvider(cfg.ProviderFlavor)
	if err := prov.Initialize(cfg.QueueDepth, cfg.MaxConcurrent); err != nil {
		log.Error("provider initialize failed", "error", err)
		return
	}
	defer prov.Shutdown()

	dispatcher := framing.NewDispatcher()

	var server *runtime.Server
	dispatcher.RegisterHandler(msgTypePing, func(msg framing.Message) {
		pong := framing.CreateMessage(msgTypePong, msg.ConnectionID, uint64(time.Now().UnixMilli()), msg.Payload)
		if err := server.Send(msg.ConnectionID, pong); err != nil {
			log.Warn("pong send failed", "conn_id", msg.ConnectionID, "error", err)
		}
	})

	srv, err := runtime.New(cfg, prov, dispatcher, runtime.WithKeepalive(30*time.Second, func(now time.Time) {
		log.Debug("keepalive tick", "at", now)
	}))
	if err != nil {
		log.Error("runtime setup failed", "error", err)
		return
	}
	server = srv

	if err := server.Listen(*addr); err != nil {
		log.Error("listen failed", "error", err)
		return
	}
	log.Info("pingpongd listening", "addr", *addr, "flavor", cfg.ProviderFlavor)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	server.Stop()
}
