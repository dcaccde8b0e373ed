// Snmpman simulates a fleet of SNMP-capable network devices for
// load-testing and integration-testing of SNMP management tools.
// Each configured agent binds its own UDP endpoint and answers
// GET/GETNEXT/GETBULK/SET from a captured walk, optionally mutated by
// per-OID modifiers.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stagetec-services/snmpman/agent"
	"github.com/stagetec-services/snmpman/config"
)

// Version information (set at build time via -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configurationPath string
		settingsPath      string
		serviceAction     string
		showVersion       bool
	)

	cmd := &cobra.Command{
		Use:           "snmpman",
		Short:         "simulate a fleet of SNMP agents from captured walks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Printf("snmpman %s\n", Version)
				fmt.Printf("Build Time: %s\n", BuildTime)
				fmt.Printf("Git Commit: %s\n", GitCommit)
				fmt.Printf("Go Version: %s\n", runtime.Version())
				return nil
			}
			if configurationPath == "" {
				return fmt.Errorf("--configuration is required")
			}

			settings, err := config.LoadSettings(settingsPath)
			if err != nil {
				return err
			}
			logger, err := buildLogger(settings.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			p := &program{
				configurationPath: configurationPath,
				settings:          settings,
				logger:            logger,
			}
			if serviceAction != "" {
				return p.controlService(serviceAction)
			}
			return p.runInteractive()
		},
	}

	cmd.Flags().StringVarP(&configurationPath, "configuration", "c", "", "agents configuration file (YAML)")
	cmd.Flags().StringVar(&settingsPath, "settings", "snmpman.toml", "optional process settings file (TOML)")
	cmd.Flags().StringVar(&serviceAction, "service", "", "service control: install, uninstall, start, stop, run")
	cmd.Flags().BoolVar(&showVersion, "version", false, "show version information and exit")
	return cmd
}

func buildLogger(settings config.LoggingSettings) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if settings.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	if settings.Level != "" {
		level, err := zap.ParseAtomicLevel(settings.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		cfg.Level = level
	}
	return cfg.Build()
}

// program runs the fleet either interactively or under the OS
// service manager.
type program struct {
	configurationPath string
	settings          config.Settings
	logger            *zap.Logger

	snmpman *agent.Snmpman
}

// start loads the configuration and brings every agent up.
func (p *program) start() error {
	factory := config.NewDeviceFactory(p.logger)
	configurations, err := config.LoadAgents(p.configurationPath, factory, p.logger)
	if err != nil {
		return err
	}
	if len(configurations) == 0 {
		return fmt.Errorf("no usable agents in %s", p.configurationPath)
	}

	snmpman, err := agent.Start(configurations, p.logger)
	if err != nil {
		return err
	}
	if len(snmpman.Agents()) == 0 {
		return fmt.Errorf("no agent could be started from %s", p.configurationPath)
	}
	p.snmpman = snmpman
	return nil
}

func (p *program) stop() {
	if p.snmpman == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		p.snmpman.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.settings.Grace()):
		p.logger.Warn("shutdown grace period elapsed")
	}
	p.snmpman = nil
}

// runInteractive serves until SIGINT or SIGTERM.
func (p *program) runInteractive() error {
	if err := p.start(); err != nil {
		return err
	}
	p.logger.Info("snmpman running",
		zap.Int("agents", len(p.snmpman.Agents())),
		zap.String("version", Version))

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	p.logger.Info("shutting down")
	p.stop()
	return nil
}

// Start implements service.Interface.
func (p *program) Start(_ service.Service) error {
	return p.start()
}

// Stop implements service.Interface.
func (p *program) Stop(_ service.Service) error {
	p.stop()
	return nil
}

// controlService installs, removes or runs snmpman as a system
// service.
func (p *program) controlService(action string) error {
	svcConfig := &service.Config{
		Name:        "snmpman",
		DisplayName: "Snmpman SNMP Agent Simulator",
		Description: "Simulates a fleet of SNMP-capable network devices.",
		Arguments:   []string{"--configuration", p.configurationPath, "--service", "run"},
	}
	svc, err := service.New(p, svcConfig)
	if err != nil {
		return err
	}

	switch action {
	case "run":
		return svc.Run()
	case "install", "uninstall", "start", "stop":
		if err := service.Control(svc, action); err != nil {
			return fmt.Errorf("service %s: %w", action, err)
		}
		fmt.Printf("service %s: ok\n", action)
		return nil
	default:
		return fmt.Errorf("unknown service action %q", action)
	}
}
