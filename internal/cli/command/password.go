package command

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/chaingate/internal/core/service"
)

// HashPasswordCommand prints an argon2id hash for an auth.users entry. The
// password comes from --password or the first line of standard input.
func HashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:  "hash-password",
		Usage: "hash a password for the auth.users configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "password", Usage: "password to hash; read from stdin when empty"},
		},
		Action: func(c *cli.Context) error {
			pass := c.String("password")
			if pass == "" {
				in := c.App.Reader
				if in == nil {
					in = os.Stdin
				}
				line, err := bufio.NewReader(in).ReadString('\n')
				if err != nil && line == "" {
					return cli.Exit("hash-password: no password given", 2)
				}
				pass = strings.TrimRight(line, "\r\n")
			}
			if pass == "" {
				return cli.Exit("hash-password: empty password", 2)
			}
			hash, err := service.HashPassword(pass)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, hash)
			return err
		},
	}
}
