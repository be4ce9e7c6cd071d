package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/netopsio/netopsgql/config"
	"github.com/netopsio/netopsgql/introspection"
	"github.com/netopsio/netopsgql/netops"
)

const version = "0.4.0"

var versionCmd = &cli.Command{
	Name:  "version",
	Usage: "print the version",
	Action: func(c *cli.Context) error {
		_, _ = fmt.Fprintln(c.App.Writer, version)
		return nil
	},
}

var pingCmd = &cli.Command{
	Name:  "ping",
	Usage: "check that the API answers",
	Action: func(c *cli.Context) error {
		rt, err := setup(c)
		if err != nil {
			return err
		}
		pong, err := rt.api.Ping(c.Context)
		if err != nil {
			return requestError(err)
		}
		_, _ = fmt.Fprintln(c.App.Writer, pong)
		return nil
	},
}

var customersCmd = &cli.Command{
	Name:  "customers",
	Usage: "list customers",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "status", Usage: "ACTIVE, SUSPENDED, PENDING or CANCELLED"},
		&cli.StringFlag{Name: "service", Usage: "FIBER or WIRELESS"},
		&cli.StringFlag{Name: "search", Usage: "match name, email or account number"},
		&cli.IntFlag{Name: "first", Usage: "page size"},
		&cli.StringFlag{Name: "after", Usage: "cursor of the previous page"},
	},
	Action: func(c *cli.Context) error {
		rt, err := setup(c)
		if err != nil {
			return err
		}

		var filter *netops.CustomerFilter
		if c.IsSet("status") || c.IsSet("service") || c.IsSet("search") {
			filter = &netops.CustomerFilter{
				Status:      enumFlag[netops.CustomerStatus](c, "status"),
				ServiceType: enumFlag[netops.ServiceType](c, "service"),
				Search:      stringFlag(c, "search"),
			}
		}

		conn, err := rt.api.Customers(c.Context, filter, intFlag(c, "first"), stringFlag(c, "after"))
		if err != nil {
			return requestError(err)
		}
		return rt.out.customers(conn)
	},
	Subcommands: []*cli.Command{
		{
			Name:      "get",
			Usage:     "show one customer",
			ArgsUsage: "ID",
			Action: func(c *cli.Context) error {
				rt, err := setup(c)
				if err != nil {
					return err
				}
				customer, err := rt.api.Customer(c.Context, c.Args().First())
				if err != nil {
					return requestError(err)
				}
				if customer == nil {
					return cli.Exit(fmt.Sprintf("customer %q: %v", c.Args().First(), netops.ErrNotFound), exitRequest)
				}
				return rt.out.customer(customer)
			},
		},
	},
}

var overviewCmd = &cli.Command{
	Name:  "overview",
	Usage: "show the network overview",
	Action: func(c *cli.Context) error {
		rt, err := setup(c)
		if err != nil {
			return err
		}
		overview, err := rt.api.NetworkOverview(c.Context)
		if err != nil {
			return requestError(err)
		}
		return rt.out.overview(overview)
	},
}

var dashboardCmd = &cli.Command{
	Name:  "dashboard",
	Usage: "show an access network dashboard",
	Subcommands: []*cli.Command{
		{
			Name:  "fiber",
			Usage: "OLT, ONT and PON port statistics",
			Action: func(c *cli.Context) error {
				rt, err := setup(c)
				if err != nil {
					return err
				}
				dashboard, err := rt.api.FiberDashboard(c.Context)
				if err != nil {
					return requestError(err)
				}
				return rt.out.fiber(dashboard)
			},
		},
		{
			Name:  "wireless",
			Usage: "access point, CPE and sector statistics",
			Action: func(c *cli.Context) error {
				rt, err := setup(c)
				if err != nil {
					return err
				}
				dashboard, err := rt.api.WirelessDashboard(c.Context)
				if err != nil {
					return requestError(err)
				}
				return rt.out.wireless(dashboard)
			},
		},
	},
}

var alertsCmd = &cli.Command{
	Name:  "alerts",
	Usage: "list network alerts",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "status", Usage: "ACTIVE, ACKNOWLEDGED or RESOLVED"},
		&cli.StringFlag{Name: "severity", Usage: "INFO, WARNING, MAJOR or CRITICAL"},
		&cli.IntFlag{Name: "first", Usage: "maximum number of alerts"},
	},
	Action: func(c *cli.Context) error {
		rt, err := setup(c)
		if err != nil {
			return err
		}
		alerts, err := rt.api.NetworkAlerts(c.Context,
			enumFlag[netops.AlertStatus](c, "status"),
			enumFlag[netops.AlertSeverity](c, "severity"),
			intFlag(c, "first"),
		)
		if err != nil {
			return requestError(err)
		}
		return rt.out.alerts(alerts)
	},
	Subcommands: []*cli.Command{
		{
			Name:      "ack",
			Usage:     "acknowledge an alert",
			ArgsUsage: "ID",
			Action: func(c *cli.Context) error {
				rt, err := setup(c)
				if err != nil {
					return err
				}
				alert, err := rt.api.AcknowledgeAlert(c.Context, c.Args().First())
				if err != nil {
					return requestError(err)
				}
				return rt.out.alerts([]*netops.NetworkAlert{alert})
			},
		},
	},
}

var provisionCmd = &cli.Command{
	Name:  "provision",
	Usage: "provision a new subscriber",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "name", Required: true},
		&cli.StringFlag{Name: "email", Required: true},
		&cli.StringFlag{Name: "phone"},
		&cli.StringFlag{Name: "street", Required: true},
		&cli.StringFlag{Name: "city", Required: true},
		&cli.StringFlag{Name: "postal-code", Required: true},
		&cli.Float64Flag{Name: "lat", Usage: "latitude"},
		&cli.Float64Flag{Name: "lon", Usage: "longitude"},
		&cli.StringFlag{Name: "plan", Required: true, Usage: "plan id"},
		&cli.StringFlag{Name: "service", Value: string(netops.ServiceTypeFiber), Usage: "FIBER or WIRELESS"},
		&cli.StringFlag{Name: "device-serial", Usage: "serial number of the CPE or ONT to assign"},
		&cli.BoolFlag{Name: "wait", Usage: "wait for the provisioning workflow to finish"},
		&cli.BoolFlag{Name: "subscribe", Usage: "with --wait, follow workflowUpdated instead of only polling"},
		&cli.DurationFlag{Name: "poll-interval", Value: netops.DefaultPollInterval},
	},
	Action: func(c *cli.Context) error {
		rt, err := setup(c)
		if err != nil {
			return err
		}

		input := netops.ProvisionSubscriberInput{
			Name:  c.String("name"),
			Email: c.String("email"),
			Phone: stringFlag(c, "phone"),
			Address: netops.AddressInput{
				Street:     c.String("street"),
				City:       c.String("city"),
				PostalCode: c.String("postal-code"),
				Latitude:   floatFlag(c, "lat"),
				Longitude:  floatFlag(c, "lon"),
			},
			PlanID:             c.String("plan"),
			ServiceType:        netops.ServiceType(strings.ToUpper(c.String("service"))),
			DeviceSerialNumber: stringFlag(c, "device-serial"),
		}

		payload, err := rt.api.ProvisionSubscriber(c.Context, input)
		if err != nil {
			return requestError(err)
		}
		if !c.Bool("wait") {
			return rt.out.print(payload, func(t *tabwriter.Writer) {
				row(t, "Customer", payload.GetCustomer().GetID())
				row(t, "Workflow", payload.GetWorkflow().GetID())
				row(t, "Status", rt.out.label(payload.GetWorkflow().GetStatus()))
			})
		}

		return waitWorkflow(c, rt, payload.GetWorkflow().GetID())
	},
}

var workflowCmd = &cli.Command{
	Name:  "workflow",
	Usage: "inspect and control provisioning workflows",
	Subcommands: []*cli.Command{
		{
			Name:      "get",
			ArgsUsage: "ID",
			Action: func(c *cli.Context) error {
				rt, err := setup(c)
				if err != nil {
					return err
				}
				wf, err := rt.api.Workflow(c.Context, c.Args().First())
				if err != nil {
					return requestError(err)
				}
				if wf == nil {
					return cli.Exit(fmt.Sprintf("workflow %q: %v", c.Args().First(), netops.ErrNotFound), exitRequest)
				}
				return rt.out.workflow(wf)
			},
		},
		{
			Name:      "cancel",
			ArgsUsage: "ID",
			Action: func(c *cli.Context) error {
				rt, err := setup(c)
				if err != nil {
					return err
				}
				wf, err := rt.api.CancelWorkflow(c.Context, c.Args().First())
				if err != nil {
					return requestError(err)
				}
				return rt.out.workflow(wf)
			},
		},
		{
			Name:      "retry",
			ArgsUsage: "ID",
			Action: func(c *cli.Context) error {
				rt, err := setup(c)
				if err != nil {
					return err
				}
				wf, err := rt.api.RetryWorkflow(c.Context, c.Args().First())
				if err != nil {
					return requestError(err)
				}
				return rt.out.workflow(wf)
			},
		},
		{
			Name:      "wait",
			ArgsUsage: "ID",
			Usage:     "block until the workflow reaches a terminal status",
			Flags: []cli.Flag{
				&cli.DurationFlag{Name: "poll-interval", Value: netops.DefaultPollInterval},
				&cli.BoolFlag{Name: "subscribe", Usage: "follow workflowUpdated instead of only polling"},
			},
			Action: func(c *cli.Context) error {
				rt, err := setup(c)
				if err != nil {
					return err
				}
				return waitWorkflow(c, rt, c.Args().First())
			},
		},
	},
}

func waitWorkflow(c *cli.Context, rt *runtime, id string) error {
	if c.Bool("subscribe") {
		closeConn, err := rt.withSubscriptions(c.Context)
		if err != nil {
			// polling still works without the websocket
			rt.logger.WithError(err).Warn("subscriptions unavailable")
		} else {
			defer closeConn()
		}
	}

	wf, err := rt.api.WaitForWorkflow(c.Context, id, netops.WaitOptions{
		PollInterval: c.Duration("poll-interval"),
		OnUpdate: func(wf *netops.Workflow) {
			rt.logger.WithField("workflow", wf.GetID()).WithField("status", wf.GetStatus()).Info("workflow updated")
		},
	})
	if err != nil {
		return requestError(err)
	}
	if err := rt.out.workflow(wf); err != nil {
		return err
	}
	if wf.GetStatus() != netops.WorkflowStatusCompleted {
		return cli.Exit(fmt.Sprintf("workflow %s ended %s", wf.GetID(), wf.GetStatus()), exitRequest)
	}
	return nil
}

var watchCmd = &cli.Command{
	Name:  "watch",
	Usage: "stream live updates until interrupted",
	Subcommands: []*cli.Command{
		{
			Name:  "devices",
			Flags: []cli.Flag{&cli.StringFlag{Name: "device", Usage: "only this device id"}},
			Action: func(c *cli.Context) error {
				return watch(c, func(ctx context.Context, rt *runtime) error {
					stream, err := rt.api.DeviceUpdated(ctx, stringFlag(c, "device"))
					if err != nil {
						return err
					}
					return drain(ctx, stream, rt.out.deviceEvent)
				})
			},
		},
		{
			Name:  "alerts",
			Flags: []cli.Flag{&cli.StringFlag{Name: "min-severity", Usage: "INFO, WARNING, MAJOR or CRITICAL"}},
			Action: func(c *cli.Context) error {
				return watch(c, func(ctx context.Context, rt *runtime) error {
					stream, err := rt.api.NetworkAlertUpdated(ctx, enumFlag[netops.AlertSeverity](c, "min-severity"))
					if err != nil {
						return err
					}
					return drain(ctx, stream, rt.out.alertEvent)
				})
			},
		},
		{
			Name:      "customer",
			ArgsUsage: "ID",
			Action: func(c *cli.Context) error {
				return watch(c, func(ctx context.Context, rt *runtime) error {
					stream, err := rt.api.CustomerNetworkStatusUpdated(ctx, c.Args().First())
					if err != nil {
						return err
					}
					return drain(ctx, stream, rt.out.customerStatusEvent)
				})
			},
		},
		{
			Name:      "workflow",
			ArgsUsage: "ID",
			Action: func(c *cli.Context) error {
				return watch(c, func(ctx context.Context, rt *runtime) error {
					stream, err := rt.api.WorkflowUpdated(ctx, c.Args().First())
					if err != nil {
						return err
					}
					return drain(ctx, stream, rt.out.workflowEvent)
				})
			},
		},
	},
}

func watch(c *cli.Context, follow func(ctx context.Context, rt *runtime) error) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}

	closeConn, err := rt.withSubscriptions(c.Context)
	if err != nil {
		return err
	}
	defer closeConn()

	if err := follow(c.Context, rt); err != nil && !errors.Is(err, context.Canceled) {
		return requestError(err)
	}
	return nil
}

func drain[T any](ctx context.Context, stream *netops.Stream[T], emit func(T) error) error {
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-stream.Next():
			if !ok {
				return stream.Err()
			}
			if err := emit(v); err != nil {
				return err
			}
		}
	}
}

var checkCmd = &cli.Command{
	Name:  "check",
	Usage: "validate the bundled operations against a local or remote schema",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "schema", Usage: "local SDL files, globs allowed; introspects the endpoint when unset"},
	},
	Action: func(c *cli.Context) error {
		schema, err := checkSchema(c)
		if err != nil {
			return err
		}

		errs := netops.CheckDocuments(schema)
		for _, err := range errs {
			_, _ = fmt.Fprintln(c.App.Writer, err)
		}
		if len(errs) > 0 {
			return cli.Exit(fmt.Sprintf("%d operations do not match the schema", len(errs)), exitOther)
		}

		_, _ = fmt.Fprintf(c.App.Writer, "%d operations ok\n", len(netops.Documents()))
		return nil
	},
}

func checkSchema(c *cli.Context) (*ast.Schema, error) {
	if globs := c.StringSlice("schema"); len(globs) > 0 {
		schema, err := config.LoadSchema(globs...)
		if err != nil {
			return nil, cli.Exit(err, exitConfig)
		}
		return schema, nil
	}

	rt, err := setup(c)
	if err != nil {
		return nil, err
	}
	if len(rt.cfg.Schema) > 0 {
		schema, err := config.LoadSchema(rt.cfg.Schema...)
		if err != nil {
			return nil, cli.Exit(err, exitConfig)
		}
		return schema, nil
	}

	schema, err := introspection.Fetch(c.Context, rt.http)
	if err != nil {
		return nil, requestError(err)
	}
	return schema, nil
}

func stringFlag(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

func intFlag(c *cli.Context, name string) *int {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Int(name)
	return &v
}

func floatFlag(c *cli.Context, name string) *float64 {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Float64(name)
	return &v
}

// enumFlag upper-cases the flag value; the client rejects invalid values.
func enumFlag[T ~string](c *cli.Context, name string) *T {
	if !c.IsSet(name) {
		return nil
	}
	v := T(strings.ToUpper(c.String(name)))
	return &v
}

func newApp(stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "netopsctl"
	app.Usage = "operate the ISP network operations API"
	app.Description = "Query customers and dashboards, provision subscribers and follow live network events."
	app.Version = version
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, EnvVars: []string{"NETOPS_CONFIG"}, Usage: "config file, searched upwards from the working directory by default"},
		&cli.StringFlag{Name: "endpoint", EnvVars: []string{"NETOPS_ENDPOINT"}, Usage: "GraphQL endpoint, overrides endpoint.url"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: outputJSON, Usage: "json or table"},
	}
	app.Commands = []*cli.Command{
		versionCmd,
		pingCmd,
		customersCmd,
		overviewCmd,
		dashboardCmd,
		alertsCmd,
		provisionCmd,
		workflowCmd,
		watchCmd,
		checkCmd,
	}
	// exit codes are handled in main so tests can inspect them
	app.ExitErrHandler = func(*cli.Context, error) {}

	return app
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args)
	stop()
	if err != nil {
		reportError(err)
		os.Exit(exitCode(err))
	}
}
