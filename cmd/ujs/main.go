// Command ujs calls any UserAndJobState method from the shell.
//
//	ujs [flags] <method> [json-param ...]
//
// Each parameter is read as JSON; anything that is not valid JSON is sent as
// a string. The result is printed as indented JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ujs-rpc/client"
	"ujs-rpc/codec"
	"ujs-rpc/config"
	"ujs-rpc/loadbalance"
	"ujs-rpc/middleware"
	"ujs-rpc/protocol"
	"ujs-rpc/registry"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath string
	url        string
	token      string
	timeout    time.Duration
	wait       bool
	verbose    bool
	metrics    bool
	methods    bool
}

func (o *options) setFlags(f *gnuflag.FlagSet) {
	f.StringVar(&o.configPath, "config", "", "YAML configuration file")
	f.StringVar(&o.url, "url", "", "service endpoint (overrides the configuration)")
	f.StringVar(&o.token, "token", "", "authorization token (default $KB_AUTH_TOKEN)")
	f.DurationVar(&o.timeout, "timeout", 0, "per call timeout")
	f.BoolVar(&o.wait, "wait", false, "poll the job until it completes and print its status")
	f.BoolVar(&o.verbose, "v", false, "debug logging")
	f.BoolVar(&o.metrics, "metrics", false, "print call metrics to stderr when done")
	f.BoolVar(&o.methods, "methods", false, "list the methods and their parameters")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	f := gnuflag.NewFlagSet("ujs", gnuflag.ContinueOnError)
	f.SetOutput(stderr)
	opts.setFlags(f)
	f.Usage = func() {
		fmt.Fprintln(stderr, "usage: ujs [flags] <method> [json-param ...]")
		f.PrintDefaults()
	}
	if err := f.Parse(true, args); err != nil {
		return exitUsage
	}

	if opts.methods {
		for _, m := range protocol.Methods() {
			fmt.Fprintf(stdout, "%s(%s) -> %d\n", m.Name, strings.Join(m.Params, ", "), m.Returns)
		}
		return exitOK
	}
	if f.NArg() == 0 {
		f.Usage()
		return exitUsage
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "ujs: %v\n", err)
		return exitUsage
	}

	logger := newLogger(stderr, cfg.LogLevel, opts.verbose)
	defer logger.Sync()

	metrics := middleware.NewMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics)

	cl, cleanup, err := newClient(cfg, logger, metrics)
	if err != nil {
		fmt.Fprintf(stderr, "ujs: %v\n", err)
		return exitFailure
	}
	defer cleanup()

	method, params := f.Arg(0), parseParams(f.Args()[1:])
	code := call(ctx, cl, method, params, opts.wait, stdout, stderr)

	if opts.metrics {
		writeMetrics(reg, stderr)
	}
	return code
}

func call(ctx context.Context, cl *client.Client, method string, params []any, wait bool, stdout, stderr io.Writer) int {
	result, err := cl.Call(ctx, method, params...)
	if errors.Is(err, errors.NotValid) {
		fmt.Fprintf(stderr, "ujs: %v\n", err)
		return exitUsage
	}
	if err != nil {
		report(stderr, err)
		return exitFailure
	}
	if err := printJSON(stdout, result); err != nil {
		fmt.Fprintf(stderr, "ujs: %v\n", err)
		return exitFailure
	}

	if !wait {
		return exitOK
	}
	job, ok := jobOf(method, params, result)
	if !ok {
		fmt.Fprintf(stderr, "ujs: --wait: %s does not name a job\n", method)
		return exitUsage
	}
	status, err := cl.WaitForJob(ctx, job)
	if err != nil {
		report(stderr, err)
		return exitFailure
	}
	if err := printJSON(stdout, status); err != nil {
		fmt.Fprintf(stderr, "ujs: %v\n", err)
		return exitFailure
	}
	if status.Error {
		return exitFailure
	}
	return exitOK
}

// jobOf finds the job a call is about: the id it created, or its job
// argument.
func jobOf(method string, params []any, result json.RawMessage) (string, bool) {
	switch protocol.ShortName(method) {
	case "create_job", "create_job2", "create_and_start_job":
		var job string
		if err := json.Unmarshal(result, &job); err == nil && job != "" {
			return job, true
		}
		return "", false
	}
	m, ok := protocol.Lookup(method)
	if !ok || !m.JobScoped() {
		return "", false
	}
	job, ok := params[0].(string)
	return job, ok
}

func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if opts.url != "" {
		cfg.URL = opts.url
		cfg.Endpoints = nil
		cfg.Etcd.Endpoints = nil
	}
	switch {
	case opts.token != "":
		cfg.Token = opts.token
	case cfg.Token == "":
		cfg.Token = os.Getenv("KB_AUTH_TOKEN")
	}
	if opts.timeout != 0 {
		cfg.Timeout = opts.timeout
	}
	return cfg, errors.Trace(cfg.Validate())
}

func newLogger(w io.Writer, level string, verbose bool) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(w),
		lvl,
	)
	return zap.New(core).Named("ujs")
}

// newClient builds the client described by cfg. cleanup releases the
// connections it holds.
func newClient(cfg *config.Config, logger *zap.Logger, metrics *middleware.Metrics) (*client.Client, func(), error) {
	opts := []client.Option{
		client.WithURL(cfg.URL),
		client.WithCredential(cfg.Token, cfg.UserID),
		client.WithTimeout(cfg.Timeout),
		client.WithAsyncJobCheckTime(cfg.AsyncJobCheckTime),
		client.WithAsyncVersion(cfg.AsyncVersion),
		client.WithLogger(logger),
		client.WithMiddleware(metrics.Middleware()),
	}
	if cfg.RateLimit.RPS > 0 {
		opts = append(opts, client.WithMiddleware(middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))
	}

	closers := []func(){}
	if cfg.Discovery() {
		bal, err := loadbalance.New(cfg.Balancer)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		var reg registry.Registry
		if len(cfg.Endpoints) > 0 {
			reg = registry.NewStaticRegistry(protocol.ServiceName, cfg.Endpoints...)
		} else {
			etcd, err := registry.NewEtcdRegistry(registry.EtcdConfig{
				Endpoints:   cfg.Etcd.Endpoints,
				DialTimeout: cfg.Etcd.DialTimeout,
				Logger:      logger,
			})
			if err != nil {
				return nil, nil, errors.Trace(err)
			}
			closers = append(closers, func() { etcd.Close() })
			cache := registry.NewCache(etcd, logger)
			closers = append(closers, cache.Close)
			reg = cache
		}
		opts = append(opts, client.WithDiscovery(reg, bal))
	}

	cl := client.New(opts...)
	closers = append(closers, cl.Close)
	return cl, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}

// parseParams reads each argument as JSON, falling back to a plain string.
func parseParams(args []string) []any {
	params := make([]any, len(args))
	for i, arg := range args {
		var v any
		if err := json.Unmarshal([]byte(arg), &v); err != nil {
			v = arg
		}
		params[i] = v
	}
	return params
}

func printJSON(w io.Writer, v any) error {
	if raw, ok := v.(json.RawMessage); ok && raw == nil {
		return nil
	}
	out, err := codec.GetCodec(codec.CodecTypeJSONIndent).Encode(v)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return errors.Trace(err)
}

func report(w io.Writer, err error) {
	var failed *client.RequestFailedError
	if errors.As(err, &failed) {
		if serr, ok := failed.ServerError(); ok && serr.Error != "" {
			fmt.Fprintf(w, "ujs: %s\n%s\n", failed.Message, serr.Error)
			return
		}
	}
	fmt.Fprintf(w, "ujs: %v\n", err)
}

func writeMetrics(g prometheus.Gatherer, w io.Writer) {
	families, err := g.Gather()
	if err != nil {
		fmt.Fprintf(w, "ujs: gathering metrics: %v\n", err)
		return
	}
	for _, mf := range families {
		expfmt.MetricFamilyToText(w, mf)
	}
}
