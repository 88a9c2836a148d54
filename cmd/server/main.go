// Command server runs the lifenet UDP game server: it binds a UDP socket,
// loads configuration from the environment, and drives the packet-decode,
// tick, network-maintenance, and heartbeat loops until it receives a
// shutdown signal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/lifenet/server/internal/buffer"
	"github.com/lifenet/server/internal/config"
	"github.com/lifenet/server/internal/eventbus"
	"github.com/lifenet/server/internal/gameserver"
	"github.com/lifenet/server/internal/logging"
	"github.com/lifenet/server/internal/metrics"
	"github.com/lifenet/server/internal/protocol"
	"github.com/lifenet/server/internal/resourceguard"
	"github.com/lifenet/server/internal/workerpool"
)

const maxDatagramSize = 4096

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	listen := flag.String("listen", "", "listen address (overrides LIFENET_HOST)")
	port := flag.Int("port", 0, "listen port (overrides LIFENET_PORT)")
	flag.Parse()

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if *listen != "" {
		cfg.ListenHost = *listen
	}
	if *port != 0 {
		cfg.ListenPort = *port
	}

	logCfg := logging.Config{Level: logging.Level(cfg.LogLevel), Format: logging.Format(cfg.LogFormat)}
	logger := logging.New(logCfg)
	logging.InitGlobal(logCfg)
	cfg.LogConfig(logger)

	logger.Info().Int("gomaxprocs", runtime.GOMAXPROCS(0)).Msg("runtime configured")

	addr := net.JoinHostPort(cfg.ListenHost, fmt.Sprintf("%d", cfg.ListenPort))
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", addr).Msg("failed to resolve listen address")
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", addr).Msg("failed to bind UDP socket")
	}
	defer conn.Close()
	logger.Info().Str("addr", addr).Msg("listening")

	bus, err := eventbus.Connect(cfg.NATSUrl, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to NATS, continuing without it")
		bus, _ = eventbus.Connect("", logger)
	}
	defer bus.Close()
	metrics.SetNATSConnected(bus.Connected())

	guardCfg := resourceguard.DefaultConfig()
	if cfg.MaxPlayers > 0 {
		guardCfg.MaxPlayers = cfg.MaxPlayers
	}
	guardCfg.CPURejectThreshold = cfg.CPURejectThreshold
	guardCfg.CPUPauseThreshold = cfg.CPUPauseThreshold
	guardCfg.MaxNATSMessagesPerSec = cfg.MaxNATSMessagesPerSec
	guardCfg.MaxBroadcastsPerSec = cfg.MaxBroadcastsPerSec
	guardCfg.MaxGoroutines = cfg.MaxGoroutines

	var playerCount int64
	guard := resourceguard.New(guardCfg, logger, &playerCount)
	metrics.SetPlayersMax(guardCfg.MaxPlayers)
	metrics.SetMemoryLimitBytes(guardCfg.MemoryLimit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	guard.StartMonitoring(ctx, 5*time.Second)

	go func() {
		if err := metrics.Serve(cfg.MetricsAddr); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	state := gameserver.New(cfg, logger, bus, time.Now())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	tickTicker := time.NewTicker(cfg.TickInterval)
	defer tickTicker.Stop()
	networkTicker := time.NewTicker(cfg.NetworkInterval)
	defer networkTicker.Stop()
	heartbeatTicker := time.NewTicker(cfg.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	bufPool := buffer.NewPool()
	inbound := make(chan inboundDatagram, 256)
	go readLoop(conn, inbound, bufPool)

	sendPool := workerpool.New(2 * runtime.GOMAXPROCS(0))
	sendPool.Start(ctx)
	defer sendPool.Stop()

	logger.Info().Msg("lifenet server ready")

	for {
		select {
		case <-sigCh:
			logger.Info().Msg("shutdown signal received")
			cancel()
			return

		case dg := <-inbound:
			handleInbound(conn, state, dg, bufPool)

		case t := <-tickTicker.C:
			sendAll(conn, sendPool, state.Tick(t))

		case t := <-networkTicker.C:
			sendAll(conn, sendPool, state.NetworkMaintenance(t))

		case t := <-heartbeatTicker.C:
			sendAll(conn, sendPool, state.Heartbeat(t))
		}
	}
}

type inboundDatagram struct {
	addr net.Addr
	data *[]byte
}

// readLoop owns the only blocking read on the socket; everything else is
// driven off the inbound channel from the select loop in main. Each
// datagram's bytes are pulled from pool so a busy socket doesn't allocate
// one slice per packet.
func readLoop(conn *net.UDPConn, out chan<- inboundDatagram, pool *buffer.Pool) {
	scratch := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFromUDP(scratch)
		if err != nil {
			return
		}
		data := pool.Get(n)
		copy(*data, scratch[:n])
		out <- inboundDatagram{addr: addr, data: data}
	}
}

func handleInbound(conn *net.UDPConn, state *gameserver.ServerState, dg inboundDatagram, pool *buffer.Pool) {
	defer pool.Put(dg.data)

	pkt, err := protocol.Decode(*dg.data)
	if err != nil {
		metrics.RecordError(metrics.ErrorTypeProtocol, metrics.SeverityWarning)
		return
	}
	reply, err := state.DecodePacket(dg.addr, pkt, time.Now())
	if err != nil {
		metrics.RecordError(metrics.ErrorTypeProtocol, metrics.SeverityWarning)
		return
	}
	if reply == nil {
		return
	}
	send(conn, dg.addr, *reply)
}

// sendAll dispatches every outbound packet through the worker pool so a
// tick producing updates for many players doesn't serialize their sends on
// the event loop goroutine.
func sendAll(conn *net.UDPConn, pool *workerpool.Pool, out []gameserver.Outbound) {
	for _, o := range out {
		o := o
		pool.Submit(func() { send(conn, o.Addr, o.Packet) })
	}
}

func send(conn *net.UDPConn, addr net.Addr, pkt protocol.Packet) {
	body, err := protocol.Encode(pkt)
	if err != nil {
		metrics.RecordError(metrics.ErrorTypeSerialization, metrics.SeverityWarning)
		return
	}
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return
	}
	if _, err := conn.WriteToUDP(body, udpAddr); err != nil {
		metrics.RecordError(metrics.ErrorTypeNetwork, metrics.SeverityWarning)
	}
}
