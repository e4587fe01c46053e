package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/AbhayRathi/AlphaWEEX/internal/config"
	"github.com/AbhayRathi/AlphaWEEX/internal/exchange"
	"github.com/AbhayRathi/AlphaWEEX/internal/httpapi"
	"github.com/AbhayRathi/AlphaWEEX/internal/llmclient"
	"github.com/AbhayRathi/AlphaWEEX/internal/metrics"
	"github.com/AbhayRathi/AlphaWEEX/internal/state"
	"github.com/AbhayRathi/AlphaWEEX/internal/supervisor"
)

const version = "v0.1.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	var configPath string

	rootCmd := &cobra.Command{
		Use:     "aether-evo",
		Short:   "Autonomous self-evolving trading control plane",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults layered underneath)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the supervisor and every collaborator loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(configPath)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print a one-shot status snapshot from a running instance's HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			return printRemoteStatus(addr)
		},
	}
	statusCmd.Flags().String("addr", "http://127.0.0.1:8090", "base URL of a running instance's HTTP surface")

	evolveCmd := &cobra.Command{
		Use:   "evolve",
		Short: "Force one evolution-gate attempt against the current reasoning state and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return forceEvolve(configPath)
		},
	}

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Run one reconciliation audit cycle against the ledger and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(configPath)
		},
	}

	rootCmd.AddCommand(runCmd, statusCmd, evolveCmd, auditCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return *cfg, nil
}

// buildCollaborators constructs the concrete market.Client and
// llm.Transport this process talks to. A DeepSeek-compatible LLM
// transport always requires an API key; the Kraken client needs none
// for the public endpoints it calls.
func buildCollaborators(cfg config.Config) (*exchange.KrakenClient, *llmclient.DeepSeekTransport) {
	marketClient := exchange.NewKrakenClient()
	llmTransport := llmclient.NewDeepSeekTransport(cfg.LLM.APIKey, cfg.LLM.Model)
	return marketClient, llmTransport
}

func runSupervisor(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	marketClient, llmTransport := buildCollaborators(cfg)
	sup, err := supervisor.New(cfg, marketClient, llmTransport, log.Logger)
	if err != nil {
		return fmt.Errorf("wire supervisor: %w", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go reportMetricsLoop(ctx, sup, collector)

	var httpServer *httpapi.Server
	if cfg.HTTP.Enabled {
		host, portStr, splitErr := net.SplitHostPort(cfg.HTTP.Addr)
		httpCfg := httpapi.DefaultConfig()
		if splitErr == nil {
			if host != "" {
				httpCfg.Host = host
			}
			if port, convErr := strconv.Atoi(portStr); convErr == nil {
				httpCfg.Port = port
			}
		}
		httpServer = httpapi.NewServer(httpCfg, sup, registry, log.Logger)
		go func() {
			if err := httpServer.Start(); err != nil {
				log.Error().Err(err).Msg("http surface stopped")
			}
		}()
	}

	log.Info().Str("symbol", cfg.Trading.Symbol).Msg("aether-evo starting")
	sup.Run(ctx)

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}

	return nil
}

// reportMetricsLoop mirrors the supervisor's own status snapshot into
// the Prometheus collector every few seconds, since Supervisor has no
// direct dependency on internal/metrics.
func reportMetricsLoop(ctx context.Context, sup *supervisor.Supervisor, collector *metrics.Collector) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := sup.Status()
			collector.SetKillSwitch(status.Guardrails.KillSwitchTriggered)
			collector.SetEquity(status.Guardrails.CurrentEquity)
			collector.SetRegistryVersion(status.Registry)
			collector.SetSharedState(
				status.SharedState.RiskLevel == state.RiskHigh,
				status.SharedState.SentimentMultiplier,
				status.SharedState.WhaleDumpRisk,
			)
			collector.SetShadowLiveComparison(
				status.Shadow.ShadowSharpe,
				status.Shadow.LiveSharpe,
				status.Shadow.ShadowROI,
				status.Shadow.LiveROI,
			)
		}
	}
}

func printRemoteStatus(addr string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(addr + "/status")
	if err != nil {
		return fmt.Errorf("fetch status from %s: %w", addr, err)
	}
	defer resp.Body.Close()

	var status supervisor.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(status)
}

func forceEvolve(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	marketClient, llmTransport := buildCollaborators(cfg)
	sup, err := supervisor.New(cfg, marketClient, llmTransport, log.Logger)
	if err != nil {
		return fmt.Errorf("wire supervisor: %w", err)
	}

	accepted, reason := sup.TriggerEvolution(context.Background())
	log.Info().Bool("accepted", accepted).Str("reason", reason).Msg("evolution attempt complete")
	return nil
}

func runAudit(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled {
		return fmt.Errorf("audit requires a configured ledger database (set PG_DSN)")
	}

	marketClient, llmTransport := buildCollaborators(cfg)
	sup, err := supervisor.New(cfg, marketClient, llmTransport, log.Logger)
	if err != nil {
		return fmt.Errorf("wire supervisor: %w", err)
	}

	audited, err := sup.TriggerAuditCycle(context.Background())
	if err != nil {
		return fmt.Errorf("audit cycle: %w", err)
	}
	log.Info().Int("predictions_audited", audited).Msg("audit cycle complete")
	return nil
}
