// tlsserve is a TLS terminating server running a simple service
// behind the terminator.
//
// Usage:
//
//   tlsserve --key key.pem --cert cert.pem [flags]
//
//   tlsserve --config netsrv.yaml [flags]
//
//   tlsserve --help
//
// Examples:
//
//   ./tlsserve --host db1 --key key.pem --cert cert.pem --timeout 30s
//   ./tlsserve --key key.pem --cert cert.pem --service h2 --min-tls TLSv1.2
//   ./tlsserve --plaintext --listen 127.0.0.1:8080 --debug
//
// Flags override the values read from the configuration file. On exit
// tlsserve logs the values of its counters.
package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/ooni/netsrv"
	"github.com/ooni/netsrv/handlers/logger"
	"github.com/ooni/netsrv/internal/config"
	"github.com/ooni/netsrv/internal/service/dot"
	"github.com/ooni/netsrv/internal/service/echo"
	"github.com/ooni/netsrv/internal/service/h2"
	"github.com/ooni/netsrv/internal/stat"
	"github.com/ooni/netsrv/model"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const meterName = "github.com/ooni/netsrv/cmd/tlsserve"

var version = "dev"

// onListen is called once the listener is ready.
var onListen = func(addr net.Addr) {}

// Command contains the command line flags.
type Command struct {
	Config    string           `help:"YAML configuration file."`
	Host      string           `help:"Server identity, used for logging."`
	Listen    string           `help:"Address to listen on."`
	Key       string           `help:"PEM private key file."`
	Cert      string           `help:"PEM certificate file."`
	Timeout   time.Duration    `help:"I/O timeout of accepted sessions."`
	Service   string           `help:"Service to run: echo, dot or h2."`
	Plaintext bool             `help:"Do not use TLS."`
	MinTLS    string           `name:"min-tls" help:"Minimum TLS version (e.g. TLSv1.2)."`
	MaxTLS    string           `name:"max-tls" help:"Maximum TLS version (e.g. TLSv1.3)."`
	MaxConns  int              `name:"max-conns" help:"Maximum number of open sessions, zero means no limit."`
	Debug     bool             `help:"Enable debug logging."`
	OTel      bool             `name:"otel" help:"Also collect counters with OpenTelemetry."`
	Version   kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	var cmd Command
	k := kong.Parse(&cmd,
		kong.Description("TLS terminating server."),
		kong.Vars{
			"version": version,
		},
	)
	err := cmd.Run(context.Background())
	k.FatalIfErrorf(err)
}

// Run runs the server until ctx is done or a signal arrives.
func (c *Command) Run(ctx context.Context) error {
	log.SetHandler(cli.Default)
	log.SetLevel(log.InfoLevel)
	if c.Debug {
		log.SetLevel(log.DebugLevel)
	}
	conf, err := c.load()
	if err != nil {
		return err
	}
	counter := &stat.Counter{}
	var stats model.Stats = counter
	var reader *sdkmetric.ManualReader
	if c.OTel {
		reader = sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer provider.Shutdown(context.Background())
		otel.SetMeterProvider(provider)
		meter := otel.GetMeterProvider().Meter(meterName)
		stats = stat.Tee{counter, stat.NewOTel(meter, "netsrv.")}
	}
	handler := logger.NewHandler(log.Log)
	root := netsrv.NewScope("tlsserve", nil)
	defer root.Free()
	server, err := newServer(conf, root, handler, stats)
	if err != nil {
		return err
	}
	serve, err := newService(conf)
	if err != nil {
		return err
	}
	ln, err := netsrv.Listen("tcp", conf.Listen, conf.MaxConns, netsrv.WithHandler(handler))
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"address": ln.Addr().String(),
		"server":  server.String(),
		"service": conf.Service,
		"type":    server.Type(),
	}).Info("listening")
	onListen(ln.Addr())
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = netsrv.Serve(ctx, ln, server, serve)
	root.Free()
	logCounters(counter)
	if reader != nil {
		logMetrics(reader)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Command) load() (*config.Config, error) {
	conf := config.Default()
	if c.Config != "" {
		var err error
		if conf, err = config.Read(c.Config); err != nil {
			return nil, err
		}
	}
	if c.Host != "" {
		conf.Host = c.Host
	}
	if c.Listen != "" {
		conf.Listen = c.Listen
	}
	if c.Key != "" {
		conf.KeyFile = c.Key
	}
	if c.Cert != "" {
		conf.CertFile = c.Cert
	}
	if c.Timeout != 0 {
		conf.Timeout = c.Timeout
	}
	if c.Service != "" {
		conf.Service = c.Service
	}
	if c.Plaintext {
		conf.Plaintext = true
	}
	if c.MinTLS != "" {
		conf.TLS.MinVersion = c.MinTLS
	}
	if c.MaxTLS != "" {
		conf.TLS.MaxVersion = c.MaxTLS
	}
	if c.MaxConns != 0 {
		conf.MaxConns = c.MaxConns
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func newServer(
	conf *config.Config, root *netsrv.Scope, handler model.Handler, stats model.Stats,
) (netsrv.Server, error) {
	opts := []netsrv.Option{
		netsrv.WithHandler(handler),
		netsrv.WithScope(root),
		netsrv.WithStats(stats),
	}
	if conf.Plaintext {
		return netsrv.NewPlainServer(conf.Host, conf.Timeout, opts...)
	}
	p := conf.Protocols()
	opts = append(opts,
		netsrv.WithTLSVersions(p.MinVersion, p.MaxVersion),
		netsrv.WithCipherSuites(p.CipherSuites...),
		netsrv.WithNextProtos(p.NextProtos...),
	)
	return netsrv.NewTLSServer(conf.Host, conf.KeyFile, conf.CertFile, conf.Timeout, opts...)
}

func newService(conf *config.Config) (netsrv.SessionFunc, error) {
	switch conf.Service {
	case config.ServiceDoT:
		responder, err := dot.New(conf.DNS.Records, conf.DNS.TTL)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, session model.Session) {
			done(log.Fields{"connID": session.ID()}, "dot: session done", responder.Serve(ctx, session))
		}, nil
	case config.ServiceH2:
		service := h2.New(h2.InfoHandler(conf.Host))
		return func(ctx context.Context, session model.Session) {
			done(log.Fields{"connID": session.ID()}, "h2: session done", service.Serve(ctx, session))
		}, nil
	default:
		return func(ctx context.Context, session model.Session) {
			count, err := echo.Serve(ctx, session)
			done(log.Fields{"bytes": count, "connID": session.ID()}, "echo: session done", err)
		}, nil
	}
}

func done(fields log.Fields, message string, err error) {
	entry := log.WithFields(fields)
	if err != nil {
		entry.WithError(err).Warn(message)
		return
	}
	entry.Debug(message)
}

func logCounters(counter *stat.Counter) {
	fields := log.Fields{}
	for name, value := range counter.Snapshot() {
		fields[name] = value
	}
	log.WithFields(fields).Info("counters")
}

func logMetrics(reader *sdkmetric.ManualReader) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		log.WithError(err).Warn("otel: cannot collect metrics")
		return
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			log.WithFields(log.Fields{"name": m.Name, "value": total}).Info("otel: metric")
		}
	}
}
