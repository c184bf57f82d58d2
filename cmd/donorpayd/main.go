package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"donorpay/config"
	"donorpay/gateway"
	"donorpay/native/rewards"
	"donorpay/observability/logging"
	telemetry "donorpay/observability/otel"
	"donorpay/rpc"
	"donorpay/sdk/balance"
	"donorpay/sdk/issuance"
	"donorpay/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "donorpayd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.toml", "path to donorpayd configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("DONORPAY_ENV"))
	if env == "" {
		env = cfg.Env
	}
	var fileCfg *logging.FileConfig
	if strings.TrimSpace(cfg.LogFile.Path) != "" {
		fileCfg = &logging.FileConfig{
			Path:       cfg.LogFile.Path,
			MaxSizeMB:  cfg.LogFile.MaxSizeMB,
			MaxBackups: cfg.LogFile.MaxBackups,
			MaxAgeDays: cfg.LogFile.MaxAgeDays,
		}
	}
	logger := logging.Setup("donorpayd", env, fileCfg)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "donorpayd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer db.Close()

	minter, err := issuance.NewClient(issuance.Config{
		BaseURL: cfg.Issuance.BaseURL,
		APIKey:  cfg.Issuance.APIKey,
		Timeout: time.Duration(cfg.Issuance.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("issuance client: %w", err)
	}
	balanceClient, err := balance.NewClient(balance.Config{
		BaseURL: cfg.Balance.BaseURL,
		APIKey:  cfg.Balance.APIKey,
		Timeout: time.Duration(cfg.Balance.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("balance client: %w", err)
	}

	dispatcher := gateway.NewDispatcher(gateway.Config{
		Minter:  minter,
		Balance: balanceClient,
		Logger:  logger,
	})

	engine := rewards.NewEngine()
	engine.SetLedger(rewards.NewLedger(db))
	engine.SetGateway(dispatcher)
	engine.SetAdmin(cfg.Operator)
	engine.SetLogger(logger)
	if raw := strings.TrimSpace(cfg.MinRegistrationDeposit); raw != "" {
		min, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return fmt.Errorf("parse MinRegistrationDeposit %q", raw)
		}
		engine.SetMinRegistrationDeposit(min)
	}
	dispatcher.SetResolver(engine)

	server := rpc.NewServer(rpc.ServerConfig{
		Engine:             engine,
		AuthToken:          cfg.RPCToken,
		Operator:           cfg.Operator,
		RateLimitPerMinute: cfg.RPCRateLimitPerMinute,
		RateLimitBurst:     cfg.RPCRateLimitBurst,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc server listening", "addr", cfg.RPCAddress)
		errCh <- server.Start(cfg.RPCAddress)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
	}

	// Let in-flight gateway calls resolve so no continuation is lost.
	dispatcher.Wait()
	return nil
}
