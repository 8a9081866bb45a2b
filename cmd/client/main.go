package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v3"

	"github.com/NicolasHaas/gotable/pkg/client"
	"github.com/NicolasHaas/gotable/pkg/logging"
	"github.com/NicolasHaas/gotable/pkg/protocol"
	"github.com/NicolasHaas/gotable/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	cmd := &cli.Command{
		Name:    "gotable",
		Usage:   "join a table session",
		Version: version.Full(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:3000", Usage: "server address (tcp)", Sources: cli.EnvVars("GOTABLE_ADDR")},
			&cli.StringFlag{Name: "ws", Usage: "websocket URL, e.g. ws://host:3000/ws (overrides --addr)", Sources: cli.EnvVars("GOTABLE_WS_URL")},
			&cli.StringFlag{Name: "name", Usage: "display name", Required: true, Sources: cli.EnvVars("GOTABLE_NAME")},
			&cli.StringFlag{Name: "code", Value: "TEST", Usage: "room code", Sources: cli.EnvVars("GOTABLE_CODE")},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "connect timeout"},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "log level: " + logging.LevelNames(), Sources: cli.EnvVars("GOTABLE_LOG_LEVEL")},
			&cli.StringFlag{Name: "log-format", Value: "pretty", Usage: "log format: " + logging.FormatNames(), Sources: cli.EnvVars("GOTABLE_LOG_FORMAT")},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if err := logging.Setup(logging.Options{
		Level:  cmd.String("log-level"),
		Format: cmd.String("log-format"),
		Output: os.Stderr,
	}); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	var (
		c   *client.Client
		err error
	)
	if url := cmd.String("ws"); url != "" {
		c, err = client.DialWS(dialCtx, url)
	} else {
		c, err = client.Dial(dialCtx, cmd.String("addr"))
	}
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	resp, err := c.Join(cmd.String("name"), cmd.String("code"))
	if err != nil {
		return err
	}
	pterm.Success.Printfln("joined as %s", cmd.String("name"))
	for _, u := range resp.Roster {
		pterm.Info.Printfln("at the table: %s (%s)", u.Name, u.IP)
	}

	c.SetEventHandler(printEvent)
	c.StartReceiving()

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	for {
		select {
		case <-c.Done():
			pterm.Info.Println("disconnected")
			return nil
		case line, ok := <-lines:
			if !ok {
				return c.Leave()
			}
			msg, leave, err := parseAction(line)
			if err != nil {
				pterm.Warning.Println(err)
				continue
			}
			if leave {
				return c.Leave()
			}
			if err := c.Send(msg); err != nil {
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}

func readLines(in io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out <- line
		}
	}
}

// parseAction turns a console line into a message. leave is true for "close" and "quit".
func parseAction(line string) (msg protocol.Message, leave bool, err error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "raise":
		if len(fields) != 2 {
			return msg, false, errors.New("usage: raise <amount>")
		}
		amount, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return msg, false, fmt.Errorf("bad amount %q", fields[1])
		}
		return protocol.NewRaise(amount), false, nil
	case "call":
		return protocol.New(protocol.KindCall), false, nil
	case "fold":
		return protocol.New(protocol.KindFold), false, nil
	case "check":
		return protocol.New(protocol.KindCheck), false, nil
	case "close", "quit":
		return msg, true, nil
	default:
		return msg, false, fmt.Errorf("unknown command %q (raise <n>, call, fold, check, close)", fields[0])
	}
}

func printEvent(msg protocol.Message) {
	switch msg.Kind {
	case protocol.KindJoin:
		pterm.Info.Printfln("%s joined (%s)", msg.User.Name, msg.User.IP)
	case protocol.KindKick:
		pterm.Info.Printfln("%s left the table", msg.IP)
	case protocol.KindBeKick:
		pterm.Warning.Println("you were kicked by the host")
	case protocol.KindStart:
		pterm.Success.Println("game started")
	case protocol.KindOver:
		pterm.Success.Println("game over")
	default:
		slog.Debug("event", "message", msg.String())
		pterm.Println(msg.String())
	}
}
