// Command userctl inspects and edits the users file without going through the
// HTTP API. It shares the service layer with the server, so ids and update
// rules behave the same way.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/zhouzirui/user-api/backend/internal/logger"
	"github.com/zhouzirui/user-api/backend/internal/model/user"
	userservice "github.com/zhouzirui/user-api/backend/internal/service/user"
	"github.com/zhouzirui/user-api/backend/internal/storage/jsonfile"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "userctl",
		Usage:     "Manage the users file directly",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Path to the users JSON file",
				Value:   "data/users.json",
				EnvVars: []string{"USERS_FILE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Print every user",
				Action: listAction,
			},
			{
				Name:      "get",
				Usage:     "Print one user",
				ArgsUsage: "<id>",
				Action:    getAction,
			},
			{
				Name:  "add",
				Usage: "Create a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "User name"},
					&cli.StringFlag{Name: "email", Usage: "User email"},
				},
				Action: addAction,
			},
			{
				Name:      "update",
				Usage:     "Change the name and/or email of a user",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "New name"},
					&cli.StringFlag{Name: "email", Usage: "New email"},
				},
				Action: updateAction,
			},
			{
				Name:      "rm",
				Aliases:   []string{"delete"},
				Usage:     "Delete a user",
				ArgsUsage: "<id>",
				Action:    removeAction,
			},
		},
	}
}

func service(c *cli.Context) *userservice.Service {
	return userservice.NewService(jsonfile.New(c.String("file")), nil, logger.Nop())
}

func listAction(c *cli.Context) error {
	users, err := service(c).List(c.Context)
	if err != nil {
		return err
	}
	return printJSON(c, users)
}

func getAction(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	u, err := service(c).Get(c.Context, id)
	if err != nil {
		return describe(err, id)
	}
	return printJSON(c, u)
}

func addAction(c *cli.Context) error {
	u, err := service(c).Create(c.Context, user.Input{
		Name:  c.String("name"),
		Email: c.String("email"),
	})
	if err != nil {
		return err
	}
	return printJSON(c, u)
}

func updateAction(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}

	var patch user.Patch
	if c.IsSet("name") {
		name := c.String("name")
		patch.Name = &name
	}
	if c.IsSet("email") {
		email := c.String("email")
		patch.Email = &email
	}

	u, err := service(c).Update(c.Context, id, patch)
	if err != nil {
		return describe(err, id)
	}
	return printJSON(c, u)
}

func removeAction(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	u, err := service(c).Delete(c.Context, id)
	if err != nil {
		return describe(err, id)
	}
	return printJSON(c, u)
}

func idArg(c *cli.Context) (int64, error) {
	if c.NArg() != 1 {
		return 0, fmt.Errorf("expected exactly one <id> argument")
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", c.Args().First())
	}
	return id, nil
}

func describe(err error, id int64) error {
	if errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("user %d not found", id)
	}
	return err
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
