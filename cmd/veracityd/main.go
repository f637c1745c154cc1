package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/image-veracity/veracity/imagehash"
	"github.com/image-veracity/veracity/tlog"
	"github.com/image-veracity/veracity/util/cliutil"
	"github.com/image-veracity/veracity/veracity"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "veracityd",
		Usage:   "image veracity service (hashes images and logs them for transparency)",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"VERACITY_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "trillian-host",
			Usage:   "hostname and port of the Trillian log RPC server",
			Value:   "localhost:8090",
			EnvVars: []string{"TRILLIAN_HOST"},
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
		listTreesCmd,
		createTreeCmd,
		addLeafCmd,
	}

	return app.Run(args)
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the veracity HTTP service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/veracity/veracity.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   40,
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":8089",
			EnvVars: []string{"VERACITY_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":8088",
			EnvVars: []string{"VERACITY_METRICS_LISTEN"},
		},
		&cli.Int64Flag{
			Name:    "tree-id",
			Usage:   "ID of the Trillian tree to queue leaves to; 0 disables log submission",
			EnvVars: []string{"VERACITY_TREE_ID"},
		},
		&cli.IntFlag{
			Name:    "hash-workers",
			Usage:   "number of concurrent image hashing workers; 0 means GOMAXPROCS",
			EnvVars: []string{"VERACITY_HASH_WORKERS"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx, os.Stdout)

		db, err := cliutil.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
		if err != nil {
			return err
		}

		var queuer veracity.LeafQueuer
		treeID := cctx.Int64("tree-id")
		if treeID != 0 {
			tc, err := tlog.NewClient(cctx.String("trillian-host"), logger)
			if err != nil {
				return err
			}
			defer tc.Close()
			queuer = tc
		}

		srv, err := veracity.NewServer(db, veracity.Config{
			Logger:      logger,
			Tlog:        queuer,
			TreeID:      treeID,
			HashWorkers: cctx.Int("hash-workers"),
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		exitSignals := make(chan os.Signal, 1)
		signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-exitSignals
			logger.Info("received OS exit signal", "signal", sig)
			if err := srv.Shutdown(); err != nil {
				logger.Error("HTTP server shutdown error", "err", err)
			}
		}()

		return srv.RunAPI(cctx.String("bind"))
	},
}

var listTreesCmd = &cli.Command{
	Name:  "list-trees",
	Usage: "list trees known to the Trillian instance",
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx, os.Stdout)
		tc, err := tlog.NewClient(cctx.String("trillian-host"), logger)
		if err != nil {
			return err
		}
		defer tc.Close()

		trees, err := tc.ListTrees(context.Background())
		if err != nil {
			return err
		}
		for _, t := range trees {
			fmt.Printf("%d\t%s\t%s\t%s\n", t.TreeId, t.TreeState, t.DisplayName, t.Description)
		}
		return nil
	},
}

var createTreeCmd = &cli.Command{
	Name:  "create-tree",
	Usage: "create and initialize a new log tree",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "name",
			Value: "veracity",
		},
		&cli.StringFlag{
			Name:  "description",
			Value: "image veracity transparency log",
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx, os.Stdout)
		tc, err := tlog.NewClient(cctx.String("trillian-host"), logger)
		if err != nil {
			return err
		}
		defer tc.Close()

		tree, err := tc.CreateTree(context.Background(), cctx.String("name"), cctx.String("description"))
		if err != nil {
			return err
		}
		fmt.Println(tree.TreeId)
		return nil
	},
}

var addLeafCmd = &cli.Command{
	Name:      "add-leaf",
	Usage:     "hash a local image file and queue it as a log leaf",
	ArgsUsage: "<image-file>",
	Flags: []cli.Flag{
		&cli.Int64Flag{
			Name:     "tree-id",
			Required: true,
			EnvVars:  []string{"VERACITY_TREE_ID"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx, os.Stdout)
		p := cctx.Args().First()
		if p == "" {
			return fmt.Errorf("need to provide path to an image file")
		}
		buf, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		h, err := imagehash.Hash(buf)
		if err != nil {
			return err
		}

		tc, err := tlog.NewClient(cctx.String("trillian-host"), logger)
		if err != nil {
			return err
		}
		defer tc.Close()

		leaf, err := tc.QueueLeaf(context.Background(), cctx.Int64("tree-id"), h.Crypto[:], h.Perceptual[:])
		if err != nil {
			return err
		}
		fmt.Printf("crypto_hash=%s perceptual_hash=%s leaf_index=%d\n", h.Crypto, h.Perceptual, leaf.LeafIndex)
		return nil
	},
}

func configLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}
