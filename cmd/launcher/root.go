package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/balihoo/fulfillment-launcher/internal/catalog"
	"github.com/balihoo/fulfillment-launcher/internal/config"
	"github.com/balihoo/fulfillment-launcher/internal/scheduler"
	"github.com/balihoo/fulfillment-launcher/internal/splog"
	"github.com/balihoo/fulfillment-launcher/internal/taskqueue"
	"github.com/balihoo/fulfillment-launcher/internal/taskqueue/swfqueue"
)

const banner = `
  ____       _ _ _                    _
 | __ )  __ _| (_) |__   ___   ___    | |    __ _ _   _ _ __   ___| |__   ___ _ __
 |  _ \ / _' | | | '_ \ / _ \ / _ \   | |   / _' | | | | '_ \ / __| '_ \ / _ \ '__|
 | |_) | (_| | | | | | | (_) | (_) |  | |__| (_| | |_| | | | | (__| | | |  __/ |
 |____/ \__,_|_|_|_| |_|\___/ \___/   |_____\__,_|\__,_|_| |_|\___|_| |_|\___|_|
`

var (
	flagJarname       string
	flagLogfile       string
	flagLaunchDelay   int
	flagPing          int
	flagQuit          int
	flagTerminate     int
	flagKill          int
	flagConfig        string
	flagNewRelicAgent string
	flagNoNewRelic    bool
	flagNoWorker      bool
)

var rootCmd = &cobra.Command{
	Use:           "launcher [classes...]",
	Short:         "Launch and supervise fulfillment worker JVMs",
	Long:          "The launcher starts a fixed catalog of JVM worker components, restarts them on crash, and escalates through ping/quit/terminate/kill when one goes quiet.",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runLauncher,
}

func init() {
	jarDefault := defaultJarPath()

	rootCmd.Flags().StringVarP(&flagJarname, "jarname", "j", jarDefault, "path of the jar to run from")
	rootCmd.Flags().StringVarP(&flagLogfile, "logfile", "l", "/var/log/balihoo/fulfillment/launcher.log", "the log file")
	rootCmd.Flags().IntVarP(&flagLaunchDelay, "launchdelay", "d", 600, "minimum seconds between launches of the same process")
	rootCmd.Flags().IntVarP(&flagPing, "ping", "p", 300, "seconds of silence before pinging a quiet process")
	rootCmd.Flags().IntVarP(&flagQuit, "quit", "q", 600, "seconds of silence before telling a process to quit")
	rootCmd.Flags().IntVarP(&flagTerminate, "terminate", "t", 900, "seconds of silence before SIGTERM")
	rootCmd.Flags().IntVarP(&flagKill, "kill", "k", 1200, "seconds of silence before SIGKILL")
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "config/aws.properties.private", "path to the task-queue config file")
	rootCmd.Flags().StringVar(&flagNewRelicAgent, "newrelicagent", "/opt/balihoo/newrelic-agent.jar", "path to the newrelic agent jar")
	rootCmd.Flags().BoolVar(&flagNoNewRelic, "nonewrelic", false, "disable the newrelic agent")
	rootCmd.Flags().BoolVar(&flagNoWorker, "noworker", false, "disable the task-queue poller")

	rootCmd.AddCommand(inspectCmd)
}

func defaultJarPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "fulfillment.jar"
	}
	return exe + ".jar"
}

// Execute runs the launcher CLI.
func Execute() error {
	return rootCmd.Execute()
}

func runLauncher(cmd *cobra.Command, classes []string) error {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintln(os.Stderr, banner)

	logf, err := openLogfile(flagLogfile)
	if err != nil {
		return fmt.Errorf("launcher: open logfile: %w", err)
	}
	defer logf.Close()
	log := splog.New(splog.Config{Writer: logf, System: "launcher"})

	agent := flagNewRelicAgent
	if flagNoNewRelic {
		agent = ""
	}

	var poller *taskqueue.Poller
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !flagNoWorker {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("launcher: load config: %w", err)
		}
		watcher, err := config.Watch(flagConfig, log)
		if err != nil {
			log.Warn("unable to watch config file for drift", splog.Fields{"error": err.Error()})
		} else {
			defer watcher.Close()
		}

		queue, err := swfqueue.New(ctx, cfg.Region, cfg.Domain, "launcher", "1")
		if err != nil {
			return fmt.Errorf("launcher: construct task queue: %w", err)
		}
		poller = taskqueue.NewPoller(queue)
		if err := poller.Start(ctx); err != nil {
			return fmt.Errorf("launcher: start task poller: %w", err)
		}
	}

	sched := scheduler.New(flagJarname, agent, catalog.DefaultCatalog(), log, poller)
	if sched.Launch(classes...) == 0 {
		return fmt.Errorf("launcher: no components could be launched")
	}

	timeouts := scheduler.Timeouts{
		Ping:      time.Duration(flagPing) * time.Second,
		Quit:      time.Duration(flagQuit) * time.Second,
		Terminate: time.Duration(flagTerminate) * time.Second,
		Kill:      time.Duration(flagKill) * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received", nil)
		cancel()
	}()

	err = sched.Monitor(ctx, time.Duration(flagLaunchDelay)*time.Second, timeouts)
	if poller != nil {
		poller.Stop()
		poller.Drain(context.Background(), "launcher shutting down")
	}
	return err
}

func openLogfile(path string) (*os.File, error) {
	if path == "" {
		return os.Stderr, nil
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}
