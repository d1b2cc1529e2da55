package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/walrusdb/walrus/internal/client"
)

// PingCommand returns the ping subcommand.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:      "ping",
		Usage:     "Check that the server is alive",
		ArgsUsage: "[MESSAGE]",
		Action:    pingAction,
	}
}

// GetCommand returns the get subcommand.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get the value of a key",
		ArgsUsage: "KEY",
		Action:    getAction,
	}
}

// SetCommand returns the set subcommand.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Set a key to a value",
		ArgsUsage: "KEY VALUE",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "ttl",
				Aliases: []string{"t"},
				Usage:   "Expire the key after this duration (e.g. 30s, 5m)",
			},
		},
		Action: setAction,
	}
}

// RPushCommand returns the rpush subcommand.
func RPushCommand() *cli.Command {
	return &cli.Command{
		Name:      "rpush",
		Usage:     "Append items to the list stored at a key",
		ArgsUsage: "KEY ITEM [ITEM...]",
		Action:    rpushAction,
	}
}

func pingAction(c *cli.Context) error {
	var msg []byte
	if c.Args().Len() > 0 {
		msg = []byte(c.Args().First())
	}

	return withClient(c, func(cl *client.Client) error {
		reply, err := cl.Ping(msg)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(reply))
		return nil
	})
}

func getAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("get requires exactly one argument: KEY")
	}
	key := c.Args().First()

	return withClient(c, func(cl *client.Client) error {
		value, err := cl.Get(key)
		if err != nil {
			return err
		}
		if value == nil {
			fmt.Fprintln(c.App.Writer, "(nil)")
			return nil
		}
		fmt.Fprintln(c.App.Writer, string(value))
		return nil
	})
}

func setAction(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return errors.New("set requires exactly two arguments: KEY VALUE")
	}
	key := c.Args().Get(0)
	value := []byte(c.Args().Get(1))
	ttl := c.Duration("ttl")

	return withClient(c, func(cl *client.Client) error {
		var err error
		if ttl > 0 {
			err = cl.SetExpires(key, value, ttl)
		} else {
			err = cl.Set(key, value)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "OK")
		return nil
	})
}

func rpushAction(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return errors.New("rpush requires a KEY and at least one ITEM")
	}
	key := c.Args().First()
	items := make([][]byte, 0, c.Args().Len()-1)
	for _, arg := range c.Args().Tail() {
		items = append(items, []byte(arg))
	}

	return withClient(c, func(cl *client.Client) error {
		length, err := cl.RPush(key, items...)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, length)
		return nil
	})
}

// withClient connects to the configured server, runs fn and closes the
// connection.
func withClient(c *cli.Context, fn func(*client.Client) error) error {
	cl, err := client.Connect(c.String("server"))
	if err != nil {
		return err
	}
	defer cl.Close()
	return fn(cl)
}
