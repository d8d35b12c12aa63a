package command

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/chaingate/internal/cli/connection"
	"github.com/yndnr/chaingate/internal/cli/output"
	"github.com/yndnr/chaingate/internal/infra/buildinfo"
	"github.com/yndnr/chaingate/internal/infra/tlsroots"
	"github.com/yndnr/chaingate/internal/server/config"
)

// DefaultServer is the address of a locally started chaingate-server.
const DefaultServer = config.DefaultAddr

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:      "chaingate-cli",
		Usage:     "send commands to a chaingate server",
		UsageText: "chaingate-cli [global options] <method> [params...]\n   chaingate-cli [global options] command [arguments...]",
		Version:   buildinfo.String(),
		Flags:     globalFlags(),
		Commands: []*cli.Command{
			RPCCommand(),
			WSCommand(),
			LoginCommand(),
			LogoutCommand(),
			StatsCommand(),
			SessionCommand(),
			ServerVersionCommand(),
			HashPasswordCommand(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.ShowAppHelp(c)
			}
			return callRPC(c, c.Args().First(), c.Args().Tail())
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "server address: host:port, an http:// or https:// URL, or unix:///path/to/socket",
			EnvVars: []string{"CHAINGATE_SERVER"},
			Value:   DefaultServer,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "request timeout",
			Value: connection.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:    "cookie",
			Usage:   "session cookie value from `chaingate-cli login`",
			EnvVars: []string{"CHAINGATE_COOKIE"},
		},
		&cli.StringFlag{
			Name:    "cookie-name",
			Usage:   "session cookie name",
			EnvVars: []string{"CHAINGATE_COOKIE_NAME"},
			Value:   config.DefaultCookieName,
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "PEM file with an extra root certificate for https servers",
			EnvVars: []string{"CHAINGATE_CA_FILE"},
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "skip certificate verification for https servers",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format for api commands: text, json, yaml",
			Value:   string(output.FormatText),
		},
		&cli.BoolFlag{
			Name:    "pretty",
			Aliases: []string{"p"},
			Usage:   "indent JSON-RPC responses",
		},
	}
}

// GlobalFlags holds the parsed global flags.
type GlobalFlags struct {
	Server     string
	Timeout    time.Duration
	Cookie     string
	CookieName string
	CAFile     string
	Insecure   bool
	Output     string
	Pretty     bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:     c.String("server"),
		Timeout:    c.Duration("timeout"),
		Cookie:     c.String("cookie"),
		CookieName: c.String("cookie-name"),
		CAFile:     c.String("ca-file"),
		Insecure:   c.Bool("insecure"),
		Output:     c.String("output"),
		Pretty:     c.Bool("pretty"),
	}
}

// TLSConfig returns the client TLS config for https servers, or nil for
// plain http.
func (f *GlobalFlags) TLSConfig() (*tls.Config, error) {
	if !strings.HasPrefix(f.Server, "https://") {
		return nil, nil
	}
	return tlsroots.ClientConfig(f.CAFile, f.Insecure)
}

// newClient builds an HTTP client from the global flags.
func newClient(c *cli.Context) (*connection.HTTPClient, error) {
	flags := ParseGlobalFlags(c)
	tlsConfig, err := flags.TLSConfig()
	if err != nil {
		return nil, err
	}
	return connection.NewHTTPClient(flags.Server, flags.Timeout).
		WithSession(flags.CookieName, flags.Cookie).
		WithTLSConfig(tlsConfig), nil
}

func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, ParseGlobalFlags(c).Timeout)
}

// RPCCommand sends one JSON-RPC call. It is also what runs when the first
// argument names no command.
func RPCCommand() *cli.Command {
	return &cli.Command{
		Name:      "rpc",
		Usage:     "send one JSON-RPC command to /rpc",
		ArgsUsage: "<method> [params...]",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("rpc: missing method", 2)
			}
			return callRPC(c, c.Args().First(), c.Args().Tail())
		},
	}
}

func callRPC(c *cli.Context, method string, params []string) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	client, err := newClient(c)
	if err != nil {
		return err
	}
	body, err := client.Call(ctx, method, params)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	return output.WriteRaw(c.App.Writer, body, ParseGlobalFlags(c).Pretty)
}
