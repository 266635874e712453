package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kardianos/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"ucams-cli/internal/config"
	"ucams-cli/internal/exporter"
	"ucams-cli/internal/logging"
	"ucams-cli/internal/registry"
)

// Variables to hold flag values
var (
	expPort       string
	serviceAction string // "install", "uninstall", "start", "stop"
)

// --- SERVICE WRAPPER ---

// program implements the kardianos/service interface
type program struct {
	settings config.Settings
	reg      *registry.Registry
	server   *http.Server
	cancel   context.CancelFunc
	log      *zap.Logger
}

func (p *program) Start(s service.Service) error {
	// Start should not block. Do the actual work async.
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)
	return nil
}

func (p *program) accounts() []exporter.Account {
	entries := p.reg.All()
	out := make([]exporter.Account, len(entries))
	for i, e := range entries {
		out[i] = e
	}
	return out
}

func (p *program) run(ctx context.Context) {
	for _, acc := range p.settings.Accounts {
		if _, err := p.reg.Add(acc); err != nil {
			p.log.Error("failed to register account", logging.Account(acc.Name), zap.Error(err))
		}
	}

	// 1. Initial login per account; failures are retried on every scrape.
	for _, e := range p.reg.All() {
		if err := e.Cameras.EnsureAuthenticated(ctx); err != nil {
			p.log.Warn("initial login failed", logging.Account(e.Name()), zap.Error(err))
		}
	}

	go exporter.RefreshLoop(ctx, p.accounts, p.settings.RefreshInterval, p.log)

	// 2. Setup Prometheus
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		exporter.NewCollector(p.accounts, 0, p.log),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := promhttp.HandlerFor(promReg, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(p.log),
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	addr := fmt.Sprintf(":%s", expPort)
	p.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	p.log.Info("ucams exporter listening", zap.String("addr", addr), zap.Int("accounts", p.reg.Len()))

	// Blocking call to listen
	if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		p.log.Error("HTTP server error", zap.Error(err))
	}
}

func (p *program) Stop(s service.Service) error {
	p.log.Info("stopping service")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if p.server != nil {
		if err := p.server.Shutdown(ctx); err != nil {
			p.log.Warn("server forced to shutdown", zap.Error(err))
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.reg.Close()
	return nil
}

// --- COMMAND ---

var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Start Prometheus Exporter service",
	Long: `Starts a long-running HTTP server that exposes camera, intercom and balance
metrics of every configured account. Can be installed as a system service.`,
	Run: func(cmd *cobra.Command, args []string) {
		settings := loadSettings()

		// Credentials stay in the config file; the service only gets its path.
		svcArgs := []string{"exporter", "--port", expPort}
		if used := viper.ConfigFileUsed(); used != "" {
			if abs, err := filepath.Abs(used); err == nil {
				used = abs
			}
			svcArgs = append(svcArgs, "--config", used)
		}

		svcConfig := &service.Config{
			Name:        "ucams-exporter",
			DisplayName: "Ucams Prometheus Exporter",
			Description: "Exposes Ufanet camera and intercom metrics to Prometheus",
			Arguments:   svcArgs,
		}

		prg := &program{
			settings: settings,
			reg:      registry.New(logger),
			log:      logger.Named("exporter"),
		}

		s, err := service.New(prg, svcConfig)
		if err != nil {
			exitOnError("creating service", err)
		}

		// Handle Service Control Actions (Install, Start, Stop, Uninstall)
		if serviceAction != "" {
			if serviceAction == "install" && len(settings.Accounts) == 0 {
				fmt.Println("Error: no account configured. Run 'ucams-cli login' before installing the service.")
				os.Exit(1)
			}

			if err := service.Control(s, serviceAction); err != nil {
				fmt.Printf("Failed to %s service: %v\n", serviceAction, err)
				os.Exit(1)
			}
			fmt.Printf("Service action '%s' completed successfully.\n", serviceAction)
			return
		}

		if len(settings.Accounts) == 0 {
			fmt.Println("Error: no account configured.")
			os.Exit(1)
		}

		// Run the Service (Blocking)
		if err = s.Run(); err != nil {
			logger.Error("service stopped with error", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(exporterCmd)
	exporterCmd.Flags().StringVar(&expPort, "port", "9100", "Port to listen on")
	exporterCmd.Flags().StringVar(&serviceAction, "service", "", "Service action: install, uninstall, start, stop")
}
