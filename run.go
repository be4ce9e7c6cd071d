package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/netopsio/netopsgql/client"
	"github.com/netopsio/netopsgql/config"
	"github.com/netopsio/netopsgql/netops"
	"github.com/netopsio/netopsgql/subscription"
)

const (
	exitOther   = 1
	exitConfig  = 2
	exitRequest = 3
)

// runtime carries what every command needs once the config is resolved.
type runtime struct {
	cfg    *config.Config
	logger *logrus.Logger
	http   *client.Client
	api    *netops.Client
	out    *printer
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfgFile := c.String("config")
	endpoint := c.String("endpoint")

	if cfgFile == "" {
		found, err := config.FindConfigFile(".", config.DefaultFilenames)
		switch {
		case err == nil:
			cfgFile = found
		case endpoint == "":
			return nil, fmt.Errorf("failed to find config file: %w", err)
		}
	}

	if cfgFile == "" {
		return config.ForEndpoint(endpoint)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if endpoint != "" {
		cfg.Endpoint.URL = endpoint
		cfg.Subscriptions.URL = ""
		if err := cfg.Init(); err != nil {
			return nil, fmt.Errorf("failed to init: %w", err)
		}
	}

	return cfg, nil
}

func setup(c *cli.Context) (*runtime, error) {
	out, err := newPrinter(c.App.Writer, c.String("output"))
	if err != nil {
		return nil, cli.Exit(err, exitOther)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return nil, cli.Exit(err, exitConfig)
	}

	logger := cfg.Logger(c.App.ErrWriter)
	logger.WithFields(logrus.Fields{"config": cfg.Redacted()}).Debug("config loaded")

	httpClient := client.NewClient(cfg.Endpoint.URL, cfg.ClientOptions(logger)...)

	return &runtime{
		cfg:    cfg,
		logger: logger,
		http:   httpClient,
		api:    netops.NewClient(httpClient, netops.WithLogger(logger)),
		out:    out,
	}, nil
}

// withSubscriptions dials the websocket endpoint and rebuilds the API client
// on top of it. The returned func closes the connection.
func (rt *runtime) withSubscriptions(ctx context.Context) (func(), error) {
	conn, err := subscription.Dial(ctx, rt.cfg.Subscriptions.URL, rt.cfg.SubscriptionOptions(rt.logger))
	if err != nil {
		return nil, requestError(err)
	}

	rt.api = netops.NewClient(rt.http, netops.WithSubscriber(conn), netops.WithLogger(rt.logger))

	return func() {
		if err := conn.Close(); err != nil {
			rt.logger.WithError(err).Debug("closing subscription connection")
		}
	}, nil
}

// requestError maps a failed operation to an exit code. Arguments rejected
// before sending are usage errors.
func requestError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, netops.ErrInvalidInput) {
		return cli.Exit(err, exitOther)
	}
	return cli.Exit(err, exitRequest)
}

func exitCode(err error) int {
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return exitOther
}

func reportError(err error) {
	if msg := err.Error(); msg != "" {
		_, _ = fmt.Fprintln(os.Stderr, msg)
	}
}
