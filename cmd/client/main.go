package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/AnshRaj112/soconnect-backend/internal/chatsync"
	"github.com/AnshRaj112/soconnect-backend/pkg/soclient"
)

var serverFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "server",
		Value:   "http://localhost:8080",
		Usage:   "base URL of the chat server",
		EnvVars: []string{"SOCONNECT_SERVER"},
	},
	&cli.StringFlag{
		Name:     "code",
		Usage:    "your five-digit user code",
		EnvVars:  []string{"SOCONNECT_CODE"},
		Required: true,
	},
	&cli.StringFlag{
		Name:     "passcode",
		Usage:    "your passcode",
		EnvVars:  []string{"SOCONNECT_PASSCODE"},
		Required: true,
	},
}

func main() {
	app := &cli.App{
		Name:  "soconnect",
		Usage: "terminal client for the SoConnect chat server",
		Commands: []*cli.Command{
			registerCmd,
			listCmd,
			chatCmd,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var registerCmd = &cli.Command{
	Name:  "register",
	Usage: "create an account with a chosen code",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "display name", Required: true},
	}, serverFlags...),
	Action: func(cctx *cli.Context) error {
		c := soclient.New(cctx.String("server"))
		user, err := c.Register(cctx.Context, cctx.String("name"), cctx.String("code"), cctx.String("passcode"))
		if err != nil {
			return err
		}
		fmt.Printf("✅ Registered %s as %s\n", user.Name, user.Code)
		return nil
	},
}

var listCmd = &cli.Command{
	Name:  "list",
	Usage: "list your conversations, most recent first",
	Flags: serverFlags,
	Action: func(cctx *cli.Context) error {
		c, err := login(cctx)
		if err != nil {
			return err
		}
		defer c.Logout(cctx.Context)

		list, err := c.Conversations(cctx.Context)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No conversations yet.")
		}
		for _, conv := range list {
			fmt.Printf("%s  last activity %s\n", conv.CounterpartyCode, conv.LastActivityAt.Local().Format(time.DateTime))
		}
		return nil
	},
}

var chatCmd = &cli.Command{
	Name:      "chat",
	Usage:     "open a live conversation",
	ArgsUsage: "<code>",
	Flags: append([]cli.Flag{
		&cli.DurationFlag{
			Name:    "interval",
			Value:   chatsync.DefaultInterval,
			Usage:   "poll interval",
			EnvVars: []string{"SOCONNECT_POLL_INTERVAL"},
		},
	}, serverFlags...),
	Action: func(cctx *cli.Context) error {
		with := cctx.Args().First()
		if with == "" {
			return cli.ShowSubcommandHelp(cctx)
		}
		c, err := login(cctx)
		if err != nil {
			return err
		}
		return runChat(cctx.Context, c, with, cctx.Duration("interval"), os.Stdin, os.Stdout)
	},
}

func login(cctx *cli.Context) (*soclient.Client, error) {
	c := soclient.New(cctx.String("server"))
	if _, err := c.Login(cctx.Context, cctx.String("code"), cctx.String("passcode")); err != nil {
		return nil, err
	}
	return c, nil
}
