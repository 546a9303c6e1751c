package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/lowaak/smart-trainer/csc-monitor/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

type app struct {
	cfg       config.Config
	logger    *log.Logger
	logCloser *lumberjack.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, &app{}, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes the command line in args. The log file is closed on every path.
func run(ctx context.Context, a *app, args []string) error {
	defer a.close()
	rootCmd := a.rootCmd()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "csc-monitor",
		Short: "Decode Bluetooth cycling speed and cadence sensors",
		Long: `Connects to Bluetooth LE Cycling Speed and Cadence sensors and turns
their revolution counters into cadence, speed and distance.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(a.scanCmd())
	rootCmd.AddCommand(a.monitorCmd())
	rootCmd.AddCommand(a.replayCmd())
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(viper.New(), cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	// lumberjack creates the directory and rotates by size
	a.logCloser = &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}
	a.logger = log.New(a.logCloser, "", log.LstdFlags|log.Lmicroseconds)
	a.logger.Printf("csc-monitor %s: wheel circumference %dmm", cmd.Name(), cfg.WheelCircumferenceMM)
	return nil
}

func (a *app) close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}
