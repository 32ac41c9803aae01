// Command handsign recognizes static hand gestures from a camera and serves
// the results over HTTP, websocket and MQTT.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ayusman/handsign/internal/config"
)

const (
	flagConfig = "config"
	flagDebug  = "debug"
	flagDB     = "db"

	flagMode       = "mode"
	flagTray       = "tray"
	flagServe      = "serve"
	flagCamera     = "camera"
	flagMotionGate = "motion-gate"
	flagAddr       = "addr"
	flagSchema     = "schema"
	flagLimit      = "limit"
)

// env is what every command shares once Before has run.
type env struct {
	cfg    config.Config
	logger *zap.SugaredLogger
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "handsign:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	e := &env{logger: zap.NewNop().Sugar()}

	return &cli.App{
		Name:  "handsign",
		Usage: "recognize static hand gestures from a camera",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagDB,
				Usage: "sqlite database `PATH`",
			},
		},
		Before: func(c *cli.Context) error {
			logger, err := newLogger(c.Bool(flagDebug))
			if err != nil {
				return err
			}
			e.logger = logger

			cfg, err := config.Load(c.String(flagConfig))
			if err != nil {
				return err
			}
			if c.IsSet(flagDB) {
				cfg.Store.Path = c.String(flagDB)
			}
			e.cfg = cfg
			return nil
		},
		After: func(c *cli.Context) error {
			// Sync fails on terminals; there is nothing to do about it.
			_ = e.logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			e.runCommand(),
			e.serveCommand(),
			e.classifyCommand(),
			e.gesturesCommand(),
			e.sessionsCommand(),
			e.pluginsCommand(),
		},
	}
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return l.Sugar(), nil
}
