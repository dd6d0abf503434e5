// Command mtpgate runs an MTP node on a UDP port, logging every command and
// message it receives.
//
//	mtpgate -config mtpgate.toml
//	mtpgate -listen :9394 -metrics 127.0.0.1:9100
//	mtpgate -listen :0 -send 192.0.2.10:9394 -text hello
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/mtpgate"
	"github.com/opd-ai/mtpgate/config"
	"github.com/opd-ai/mtpgate/mtp"
	"github.com/opd-ai/mtpgate/peer"
	"github.com/opd-ai/mtpgate/stun"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Error("mtpgate failed")
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	listen     string
	logLevel   string
	metrics    string
	discover   bool
	send       string
	text       string
}

func parseFlags(args []string) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("mtpgate", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "TOML config file")
	fs.StringVar(&f.listen, "listen", "", "UDP listen address, overrides the config")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level, overrides the config")
	fs.StringVar(&f.metrics, "metrics", "", "Prometheus listen address, overrides the config")
	fs.BoolVar(&f.discover, "discover", false, "Discover the public address with STUN at start")
	fs.StringVar(&f.send, "send", "", "Send -text to this address once started")
	fs.StringVar(&f.text, "text", "hello", "Message sent with -send")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

func loadOptions(f *flags) (*config.Options, error) {
	options := config.NewOptions()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		options = loaded
	}

	if f.listen != "" {
		options.ListenAddr = f.listen
	}
	if f.logLevel != "" {
		options.LogLevel = f.logLevel
	}
	if f.metrics != "" {
		options.MetricsAddr = f.metrics
	}
	if f.discover {
		options.Discover = true
		if len(options.STUNServers) == 0 {
			options.STUNServers = stun.DefaultServers
		}
	}
	return options, nil
}

func run(ctx context.Context, args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	options, err := loadOptions(f)
	if err != nil {
		return err
	}
	if err := options.ConfigureLogging(); err != nil {
		return err
	}

	node, err := mtpgate.New(options, loggingHandler())
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	if err := node.Metrics().Register(registry); err != nil {
		return multierr.Append(fmt.Errorf("register metrics: %w", err), node.Close())
	}

	var server *http.Server
	if options.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: options.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	if options.Discover {
		if _, err := node.Discover(ctx); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "run",
				"error":    err.Error(),
			}).Warn("Public address discovery failed, continuing")
		}
	}

	node.Start()
	logrus.WithFields(logrus.Fields{
		"function":     "run",
		"local_addr":   node.LocalAddr().String(),
		"metrics_addr": options.MetricsAddr,
	}).Info("mtpgate running")

	g, gctx := errgroup.WithContext(ctx)

	if server != nil {
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	if f.send != "" {
		g.Go(func() error {
			return sendOnce(node, f.send, f.text)
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		var err error
		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = multierr.Append(err, server.Shutdown(shutdownCtx))
		}
		return multierr.Append(err, node.Close())
	})

	return g.Wait()
}

func sendOnce(node *mtpgate.Node, address, text string) error {
	remote, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", address, err)
	}
	sn, err := node.SendMessage([]byte(text), remote)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"function":    "sendOnce",
		"sn":          sn.String(),
		"destination": remote.String(),
		"size":        len(text),
	}).Info("Message sent")
	return nil
}

func loggingHandler() peer.Handler {
	outcome := func(kind, result string) peer.SendFunc {
		return func(sn mtp.TransactionID, destination, source net.Addr) {
			logrus.WithFields(logrus.Fields{
				"function":    "loggingHandler",
				"sn":          sn.String(),
				"destination": destination.String(),
			}).Infof("%s %s", kind, result)
		}
	}
	received := func(kind string) peer.ReceiveFunc {
		return func(body []byte, source, destination net.Addr) bool {
			logrus.WithFields(logrus.Fields{
				"function": "loggingHandler",
				"source":   source.String(),
				"size":     len(body),
				"body":     string(body),
			}).Infof("%s received", kind)
			return true
		}
	}

	return &peer.Callbacks{
		CommandSuccess: outcome("Command", "acknowledged"),
		CommandTimeout: outcome("Command", "timed out"),
		MessageSuccess: outcome("Message", "acknowledged"),
		MessageTimeout: outcome("Message", "timed out"),
		Command:        received("Command"),
		Message:        received("Message"),
		Error: func(body []byte, source, destination net.Addr) {
			logrus.WithFields(logrus.Fields{
				"function": "loggingHandler",
				"source":   source.String(),
				"error":    string(body),
			}).Warn("Peer reported an error")
		},
		Recycle: func(fragments []*mtp.Packet, source, destination net.Addr) {
			logrus.WithFields(logrus.Fields{
				"function":  "loggingHandler",
				"source":    source.String(),
				"fragments": len(fragments),
			}).Info("Incomplete message discarded")
		},
	}
}
