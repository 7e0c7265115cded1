package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"SentiCast/internal/di"
	"SentiCast/pkg/config"
	applogger "SentiCast/pkg/logger"
	"SentiCast/pkg/server"
	"SentiCast/pkg/util"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	job := flag.String("job", "", "run one job and exit: dataset, train, predict or scan (empty runs the worker)")
	dryRun := flag.Bool("dry-run", false, "read from ClickHouse but keep every write in memory")
	date := flag.String("date", "", "prediction day as YYYY-MM-DD (default today, UTC)")
	threshold := flag.Float64("threshold", 0, "anomaly threshold in percent (default from config)")
	assets := flag.String("assets", "", "comma separated asset ids (default all)")
	predictAfter := flag.Bool("predict", false, "with -job train, predict right after publishing")
	flag.Parse()

	var thresholdPercent *float64
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "threshold" {
			thresholdPercent = threshold
		}
	})

	boot := applogger.NewWriter(os.Stderr, "info")

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		boot.Error("config load failed", applogger.String("path", *configPath), applogger.Error(err))
		os.Exit(2)
	}
	day, err := util.ParseDay(*date)
	if err != nil {
		boot.Error("bad -date", applogger.Error(err))
		os.Exit(2)
	}
	if *dryRun && *job == "" {
		boot.Error("-dry-run needs -job")
		os.Exit(2)
	}

	initialize := di.InitializeApp
	if *dryRun {
		initialize = di.InitializeDryRunApp
	}
	app, cleanup, err := initialize(cfg)
	if err != nil {
		boot.Error("app initialization failed", applogger.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if *job == "" {
		err = app.Serve(ctx)
	} else {
		err = app.RunOnce(ctx, *job, server.OneShot{
			Day:              day,
			ThresholdPercent: thresholdPercent,
			Assets:           util.SplitList(*assets),
			PredictAfter:     *predictAfter,
		})
	}
	stop()
	cleanup()

	if err != nil {
		boot.Error("exited with error", applogger.String("job", *job), applogger.Error(err))
		os.Exit(1)
	}
}
