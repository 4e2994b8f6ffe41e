package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/dumacp/go-downlink/internal/config"
	"github.com/dumacp/go-downlink/internal/display"
	"github.com/dumacp/go-downlink/internal/fanout"
	"github.com/dumacp/go-downlink/internal/logging"
	"github.com/dumacp/go-downlink/internal/metrics"
	"github.com/dumacp/go-downlink/internal/nmea/device"
	"github.com/dumacp/go-downlink/internal/nmea/process"
	"github.com/dumacp/go-downlink/internal/nmea/sentence"
	"github.com/dumacp/go-downlink/internal/pubsub"
	"github.com/dumacp/go-downlink/internal/rate"
	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const versionString = "1.0.0"

func main() {
	fs := pflag.NewFlagSet("downlinkd", pflag.ContinueOnError)
	version := fs.Bool("version", false, "show version")
	cfg, err := config.Parse(fs, os.Args[1:])
	if *version {
		fmt.Printf("version: %s\n", versionString)
		os.Exit(2)
	}
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalln(err)
	}
	logging.Init(cfg.Debug, cfg.LogStd)

	if err := run(cfg); err != nil {
		logs.LogError.Fatalln(err)
	}
}

func run(cfg *config.Config) error {
	overflow, err := sentence.ParseOverflow(cfg.Overflow)
	if err != nil {
		return err
	}
	src, err := device.Open(cfg.Device, cfg.Baud, cfg.ReadTimeout)
	if err != nil {
		return err
	}
	logs.LogBuild.Printf("device: %s", cfg.Device)

	var registry *prometheus.Registry
	if cfg.MetricsAddr != "" {
		registry = prometheus.NewRegistry()
	}
	var m *metrics.Metrics
	if registry != nil {
		m = metrics.New(registry)
	}

	lines, tcpSent, udpSent := &rate.Counter{}, &rate.Counter{}, &rate.Counter{}

	var subs fanout.Subscribers
	var tcpSrv *fanout.TCPServer
	if cfg.TCPAddr != "" {
		reg := fanout.NewRegistry(cfg.TCPPool,
			fanout.WithQueueSize(cfg.TCPQueue),
			fanout.WithWriteTimeout(cfg.WriteTimeout),
			fanout.WithSentCounter(tcpSent),
			fanout.WithRegistryMetrics(m),
		)
		tcpSrv = fanout.NewTCPServer(cfg.TCPAddr, reg)
		if err := tcpSrv.Listen(); err != nil {
			return err
		}
		subs = reg
	}
	var datagrams fanout.Datagrams
	var udpSrv *fanout.UDPServer
	if cfg.UDPAddr != "" {
		udpSrv = fanout.NewUDPServer(cfg.UDPAddr, fanout.NewPeers(cfg.PeerTimeout),
			fanout.WithPingInterval(cfg.PingInterval),
			fanout.WithOutboxSize(cfg.UDPQueue),
			fanout.WithUDPWriteTimeout(cfg.WriteTimeout),
			fanout.WithDatagramCounter(udpSent),
			fanout.WithUDPMetrics(m),
		)
		if err := udpSrv.Listen(); err != nil {
			return err
		}
		datagrams = udpSrv
	}
	broadcaster := fanout.NewBroadcaster(subs, datagrams,
		fanout.WithLineCounter(lines),
		fanout.WithBroadcasterMetrics(m),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootContext := actor.NewActorSystem().Root

	disp := display.Multi{display.Log{Verbose: cfg.Debug}}
	if cfg.MQTT {
		gw, err := pubsub.Spawn(rootContext, cfg.MQTTBroker)
		if err != nil {
			logs.LogWarn.Printf("mqtt display disabled: %s", err)
		} else {
			defer gw.Stop()
			disp = append(disp, display.NewMQTT(gw))
		}
	}

	reassembler := sentence.NewReassembler(
		sentence.WithMaxLine(cfg.MaxLine),
		sentence.WithOverflow(overflow),
		sentence.WithStrip([]byte(cfg.Strip)),
	)

	props := actor.PropsFromFunc(func(c actor.Context) {
		switch msg := c.Message().(type) {
		case *actor.Started:
			nmeaA := device.NewNmeaActor(src, broadcaster,
				device.WithReopen(device.SerialOpener(cfg.Device, cfg.Baud, cfg.ReadTimeout)),
				device.WithBufferSize(cfg.BufferSize),
				device.WithReassembler(reassembler),
			)
			propsNmea := actor.PropsFromFunc(nmeaA.Receive)
			processA := process.NewActor(disp, process.WithBadFrameWindow(cfg.BadFrameWindow))
			propsProcess := actor.PropsFromFunc(processA.Receive)
			reporter := rate.NewReporter(disp, cfg.RateWindow, m)
			reporter.Register("lines", lines)
			reporter.Register("tcp", tcpSent)
			reporter.Register("udp", udpSent)
			propsRate := actor.PropsFromFunc(reporter.Receive)

			pidProcess, err := c.SpawnNamed(propsProcess, "process")
			if err != nil {
				logs.LogError.Panic(err)
			}
			pidNmea, err := c.SpawnNamed(propsNmea, "nmea")
			if err != nil {
				logs.LogError.Panic(err)
			}
			pidRate, err := c.SpawnNamed(propsRate, "rate")
			if err != nil {
				logs.LogError.Panic(err)
			}
			c.Watch(pidNmea)
			c.Watch(pidProcess)
			c.Watch(pidRate)
			c.RequestWithCustomSender(pidNmea, &device.MsgSubscribeProcess{}, pidProcess)
		case *device.MsgSourceExhausted:
			logs.LogWarn.Printf("source exhausted, shutting down: %s", msg.Err)
			stop()
		case *actor.Terminated:
			logs.LogError.Printf("actor terminated: %s", msg.Who.GetId())
		}
	})
	pid, err := rootContext.SpawnNamed(props, "downlink")
	if err != nil {
		return err
	}
	defer rootContext.PoisonFuture(pid).Wait()

	g, gctx := errgroup.WithContext(ctx)
	if tcpSrv != nil {
		g.Go(func() error { return tcpSrv.Run(gctx) })
	}
	if udpSrv != nil {
		g.Go(func() error { return udpSrv.Run(gctx) })
	}
	if registry != nil {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(registry)}
		g.Go(func() error {
			logs.LogInfo.Printf("metrics listening on %s", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return srv.Shutdown(context.Background())
		})
	}
	err = g.Wait()
	logs.LogInfo.Println("downlink stopped")
	return err
}
