package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v3"

	"github.com/NicolasHaas/gotable/pkg/logging"
	"github.com/NicolasHaas/gotable/pkg/protocol"
	"github.com/NicolasHaas/gotable/pkg/server"
	"github.com/NicolasHaas/gotable/pkg/version"
)

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	defaults := server.DefaultConfig()
	cmd := &cli.Command{
		Name:    "gotable-server",
		Usage:   "host a table session",
		Version: version.Full(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file", Sources: cli.EnvVars("GOTABLE_CONFIG")},
			&cli.StringFlag{Name: "bind", Value: defaults.BindAddr, Usage: "listen address", Sources: cli.EnvVars("GOTABLE_BIND")},
			&cli.StringFlag{Name: "code", Value: defaults.Code, Usage: "room code players must present", Sources: cli.EnvVars("GOTABLE_CODE")},
			&cli.IntFlag{Name: "capacity", Value: defaults.Capacity, Usage: "maximum number of players", Sources: cli.EnvVars("GOTABLE_CAPACITY")},
			&cli.StringFlag{Name: "transport", Value: defaults.Transport, Usage: "tcp or ws", Sources: cli.EnvVars("GOTABLE_TRANSPORT")},
			&cli.StringFlag{Name: "ws-path", Value: defaults.WSPath, Usage: "websocket upgrade path", Sources: cli.EnvVars("GOTABLE_WS_PATH")},
			&cli.StringFlag{Name: "metrics", Usage: "HTTP bind address for /metrics (empty to disable)", Sources: cli.EnvVars("GOTABLE_METRICS_ADDR")},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "log level: " + logging.LevelNames(), Sources: cli.EnvVars("GOTABLE_LOG_LEVEL")},
			&cli.StringFlag{Name: "log-format", Value: "text", Usage: "log format: " + logging.FormatNames(), Sources: cli.EnvVars("GOTABLE_LOG_FORMAT")},
			&cli.BoolFlag{Name: "no-console", Usage: "do not read host commands from stdin"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if err := logging.Setup(logging.Options{
		Level:  cmd.String("log-level"),
		Format: cmd.String("log-format"),
		Output: os.Stdout,
	}); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	srv := server.New(cfg, server.Dependencies{})
	if err := srv.Start(); err != nil {
		return err
	}
	slog.Info("session ready", "id", srv.ID(), "addr", srv.Addr(), "version", version.String())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cmd.Bool("no-console") {
		go console(srv, os.Stdin)
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		srv.Shutdown()
	case <-srv.Done():
	}
	srv.Metrics().LogSummary()
	return nil
}

// loadConfig layers defaults, then the YAML file, then explicitly set flags.
func loadConfig(cmd *cli.Command) (server.Config, error) {
	cfg := server.DefaultConfig()
	if path := cmd.String("config"); path != "" {
		if err := server.LoadConfigYAML(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if cmd.IsSet("bind") {
		cfg.BindAddr = cmd.String("bind")
	}
	if cmd.IsSet("code") {
		cfg.Code = cmd.String("code")
	}
	if cmd.IsSet("capacity") {
		cfg.Capacity = int(cmd.Int("capacity"))
	}
	if cmd.IsSet("transport") {
		cfg.Transport = cmd.String("transport")
	}
	if cmd.IsSet("ws-path") {
		cfg.WSPath = cmd.String("ws-path")
	}
	if cmd.IsSet("metrics") {
		cfg.MetricsAddr = cmd.String("metrics")
	}
	return cfg, cfg.Validate()
}

// console reads host commands line by line until the session ends or input closes.
func console(srv *server.Server, in io.Reader) {
	pterm.Info.Println("commands: start, end, kick <ip>, over, reset, roster, metrics, help")
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if done := hostCommand(srv, fields); done {
			return
		}
	}
}

// hostCommand executes one console command and reports whether the console should stop.
func hostCommand(srv *server.Server, fields []string) bool {
	switch fields[0] {
	case "start":
		if err := srv.SignalStart(); err != nil {
			pterm.Error.Println(err)
			return false
		}
		srv.Broadcast(protocol.New(protocol.KindStart))
		pterm.Success.Println("game started, room locked")
	case "end", "quit":
		if err := srv.SignalEnd(); err != nil {
			pterm.Error.Println(err)
		}
		return true
	case "kick":
		if len(fields) != 2 {
			pterm.Warning.Println("usage: kick <ip>")
			return false
		}
		if err := srv.Kick(fields[1]); err != nil {
			pterm.Error.Println(err)
			return false
		}
		pterm.Success.Printfln("kicked %s", fields[1])
	case "over":
		n := srv.Broadcast(protocol.New(protocol.KindOver))
		pterm.Info.Printfln("game over sent to %d players", n)
	case "reset":
		n := srv.Broadcast(protocol.New(protocol.KindReset))
		pterm.Info.Printfln("reset sent to %d players", n)
	case "roster":
		printRoster(srv.Roster())
	case "metrics":
		fmt.Println(srv.Metrics().JSON())
	case "help":
		pterm.Info.Println("commands: start, end, kick <ip>, over, reset, roster, metrics, help")
	default:
		pterm.Warning.Printfln("unknown command %q", fields[0])
	}
	return false
}

func printRoster(roster []protocol.UserInfo) {
	if len(roster) == 0 {
		pterm.Info.Println("no players")
		return
	}
	data := pterm.TableData{{"#", "Name", "IP"}}
	for i, u := range roster {
		data = append(data, []string{fmt.Sprint(i + 1), u.Name, u.IP})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		slog.Warn("render roster", "err", err)
	}
}
