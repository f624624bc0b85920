package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/kubedash/kubedash-go/internal/infra/shutdown"
	"github.com/kubedash/kubedash-go/internal/infra/tlsroots"
	"github.com/kubedash/kubedash-go/internal/mock"
)

// MockCommand returns the mock backend command group.
func MockCommand() *cli.Command {
	return &cli.Command{
		Name:  "mock",
		Usage: "Run the fixture backend",
		Subcommands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve the fixture backend over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: "Listen address", Value: ":8000"},
					&cli.StringFlag{Name: "base-path", Usage: "Path prefix of the API", Value: "/api"},
					&cli.DurationFlag{Name: "latency", Usage: "Artificial delay added to every response"},
					&cli.StringSliceFlag{Name: "cors-origin", Usage: "Allowed CORS origin (repeatable)"},
					&cli.StringFlag{Name: "tls-cert", Usage: "TLS certificate file"},
					&cli.StringFlag{Name: "tls-key", Usage: "TLS key file"},
				},
				Action: mockServe,
			},
		},
	}
}

func mockServe(c *cli.Context) error {
	env := envFrom(c)
	cert, key := c.String("tls-cert"), c.String("tls-key")
	if (cert == "") != (key == "") {
		return errors.New("--tls-cert and --tls-key must be given together")
	}

	opts := []mock.Option{
		mock.WithLogger(env.Logger),
		mock.WithMetrics(env.Metrics),
		mock.WithLatency(c.Duration("latency")),
	}
	if origins := c.StringSlice("cors-origin"); len(origins) > 0 {
		opts = append(opts, mock.WithCORSOrigins(origins...))
	}
	backend, err := mock.New(mockSecret, opts...)
	if err != nil {
		return fmt.Errorf("create mock backend: %w", err)
	}
	var certs *tlsroots.Watcher
	if cert != "" {
		if certs, err = tlsroots.NewWatcher(cert, key, tlsroots.WithLogger(env.Logger)); err != nil {
			return err
		}
	}
	srv := mock.NewServer(c.String("addr"), mock.Routes(backend, c.String("base-path"), env.Metrics.Handler()))

	h := shutdown.NewHandler(0, env.Logger)
	h.OnShutdown("mock server", srv.Shutdown)
	if w := watchConfig(env); w != nil {
		h.OnShutdown("config watcher", func(context.Context) error { return w.Close() })
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	if certs != nil {
		go func() {
			if err := certs.Run(ctx); err != nil {
				env.Logger.Warn("certificate watcher stopped", "error", err)
			}
		}()
	}
	serveErr := make(chan error, 1)
	go func() {
		var err error
		if certs != nil {
			err = srv.ListenAndServeTLS(certs.ServerConfig())
		} else {
			err = srv.ListenAndServe()
		}
		serveErr <- err
		if err != nil {
			cancel()
		}
	}()

	scheme := "http"
	if cert != "" {
		scheme = "https"
	}
	fmt.Fprintf(c.App.ErrWriter, "Mock backend listening on %s://%s%s (password %q)\n",
		scheme, srv.Addr(), c.String("base-path"), mock.Password)
	env.Logger.Info("mock backend started", "addr", srv.Addr(), "tls", cert != "")

	err = h.Wait(ctx)
	select {
	case sErr := <-serveErr:
		if sErr != nil {
			return errors.Join(fmt.Errorf("mock server: %w", sErr), err)
		}
	default:
	}
	return err
}
