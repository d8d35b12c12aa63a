package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// LoginCommand logs in and prints the session cookie value, ready to be
// exported as CHAINGATE_COOKIE.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "log in and print the session cookie",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "user name", Required: true},
			&cli.StringFlag{Name: "pass", Usage: "password", EnvVars: []string{"CHAINGATE_PASS"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := requestContext(c)
			defer cancel()

			client, err := newClient(c)
			if err != nil {
				return err
			}
			cookie, err := client.Login(ctx, c.String("user"), c.String("pass"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, cookie)
			return err
		},
	}
}

// LogoutCommand drops the session named by --cookie.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "end the session given by --cookie",
		Action: func(c *cli.Context) error {
			if ParseGlobalFlags(c).Cookie == "" {
				return cli.Exit("logout: --cookie is required", 2)
			}
			ctx, cancel := requestContext(c)
			defer cancel()
			client, err := newClient(c)
			if err != nil {
				return err
			}
			return client.Logout(ctx)
		},
	}
}
