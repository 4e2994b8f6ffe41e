package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/dumacp/go-downlink/internal/display"
	"github.com/dumacp/go-downlink/internal/groundlink"
	"github.com/dumacp/go-downlink/internal/logging"
	"github.com/dumacp/go-downlink/internal/rate"
	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/spf13/pflag"
)

func main() {
	var (
		addr       string
		udp        bool
		maxRetries int
		reconnect  time.Duration
		window     time.Duration
		debug      bool
		logStd     bool
	)
	fs := pflag.NewFlagSet("groundlink", pflag.ContinueOnError)
	fs.StringVar(&addr, "addr", "127.0.0.1:12346", "downlink daemon address")
	fs.BoolVar(&udp, "udp", false, "receive datagrams instead of the TCP stream")
	fs.IntVar(&maxRetries, "maxRetries", 0, "consecutive connection failures before giving up, 0 retries forever")
	fs.DurationVar(&reconnect, "reconnect", time.Second, "reconnect interval")
	fs.DurationVar(&window, "rateWindow", rate.DefaultWindow, "refresh rate sampling window")
	fs.BoolVar(&debug, "debug", false, "debug")
	fs.BoolVar(&logStd, "logStd", true, "logs in stderr")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalln(err)
	}
	logging.Init(debug, logStd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	disp := display.Log{Verbose: true}
	received := &rate.Counter{}
	reporter := rate.NewReporter(disp, window, nil)
	reporter.Register("received", received)

	rootContext := actor.NewActorSystem().Root
	pid, err := rootContext.SpawnNamed(actor.PropsFromFunc(reporter.Receive), "rate")
	if err != nil {
		logs.LogError.Fatalln(err)
	}
	defer rootContext.PoisonFuture(pid).Wait()

	opts := []groundlink.Option{
		groundlink.WithReceivedCounter(received),
		groundlink.WithReconnectInterval(reconnect),
		groundlink.WithMaxRetries(maxRetries),
		groundlink.WithErrorHandler(func(err error) {
			logs.LogWarn.Printf("groundlink: %s", err)
		}),
	}
	if udp {
		err = groundlink.NewUDPReceiver(addr, disp.Record, opts...).Run(ctx)
	} else {
		err = groundlink.NewTCPReceiver(addr, disp.Record, opts...).Run(ctx)
	}
	if err != nil {
		logs.LogError.Println(err)
		os.Exit(1)
	}
}
