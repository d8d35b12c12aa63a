package command

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/chaingate/internal/cli/output"
)

// apiResponse is the envelope every /api endpoint answers with.
type apiResponse struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// StatsCommand prints /api/stats.
func StatsCommand() *cli.Command {
	return apiCommand("stats", "show server statistics", "/api/stats")
}

// SessionCommand prints the session named by --cookie.
func SessionCommand() *cli.Command {
	return apiCommand("session", "show the current session", "/api/session")
}

// ServerVersionCommand prints the build information of the server.
func ServerVersionCommand() *cli.Command {
	return apiCommand("server-version", "show the server build information", "/api/version")
}

func apiCommand(name, usage, path string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			format, err := output.ParseFormat(ParseGlobalFlags(c).Output)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			data, err := fetchAPI(c, path)
			if err != nil {
				return err
			}
			return output.NewFormatterFor(format, c.App.Writer).Format(c.App.Writer, data)
		},
	}
}

func fetchAPI(c *cli.Context, path string) (json.RawMessage, error) {
	ctx, cancel := requestContext(c)
	defer cancel()

	client, err := newClient(c)
	if err != nil {
		return nil, err
	}
	body, err := client.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Code != "OK" {
		if resp.Message == "" {
			return nil, errors.New(string(body))
		}
		return nil, fmt.Errorf("[%s] %s", resp.Code, resp.Message)
	}
	return resp.Data, nil
}
