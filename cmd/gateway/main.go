/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command gateway is the Strategy Gateway's process entrypoint: it loads
// the YAML configuration, constructs the storage engine, order ledger,
// audit trail and one session per configured vendor plant, then serves
// the strategy wire protocol until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quickfixgo/quickfix"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"marketgw/audit"
	"marketgw/config"
	"marketgw/fanout"
	"marketgw/gateway"
	"marketgw/ledger"
	"marketgw/session"
	"marketgw/storage"
	"marketgw/subscription"
	"marketgw/types"
	"marketgw/utils"
	"marketgw/plants/fixplant"
	"marketgw/plants/wsplant"
)

func main() {
	var (
		configPath string
		envFile    string
	)

	root := &cobra.Command{
		Use:     "gateway",
		Short:   "Strategy Gateway: multi-venue market-data and order-execution server",
		Version: utils.FullVersion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, envFile)
		},
	}
	root.Flags().StringVar(&configPath, "config", "config.yaml", "path to the gateway's YAML configuration")
	root.Flags().StringVar(&envFile, "env-file", "", "optional .env file loaded into the process environment before config parsing")

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("gateway exited")
	}
}

func run(configPath, envFile string) error {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := storage.New(cfg.Storage.BasePath)
	book := ledger.New()

	for _, sc := range cfg.ContractSpecs {
		tickSize, err := decimal.NewFromString(sc.TickSize)
		if err != nil {
			return fmt.Errorf("contract spec %s: tick_size: %w", sc.Symbol, err)
		}
		valuePerTick, err := decimal.NewFromString(sc.ValuePerTick)
		if err != nil {
			return fmt.Errorf("contract spec %s: value_per_tick: %w", sc.Symbol, err)
		}
		sym := types.Symbol{Name: sc.Symbol, Vendor: types.Vendor(sc.Vendor), MarketType: parseMarketType(sc.MarketType), Exchange: sc.Exchange}
		book.SetContractSpec(sym, types.ContractSpec{TickSize: tickSize, ValuePerTick: valuePerTick})
	}

	var auditLog *audit.Log
	if cfg.Audit.DatabasePath != "" {
		auditLog, err = audit.Open(cfg.Audit.DatabasePath)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer auditLog.Close()
	}

	router := newVendorRouter()
	managers := make([]*session.Manager, 0, len(cfg.Plants))
	initiators := make([]*quickfix.Initiator, 0, len(cfg.Plants))

	for _, pc := range cfg.Plants {
		apiKey, err := config.ResolveSecret(pc.ApiKeyEnv)
		if err != nil {
			return fmt.Errorf("plant %s: %w", pc.Name, err)
		}
		apiSecret, err := config.ResolveSecret(pc.ApiSecretEnv)
		if err != nil {
			return fmt.Errorf("plant %s: %w", pc.Name, err)
		}
		passphrase, err := config.ResolveSecret(pc.PassphraseEnv)
		if err != nil {
			return fmt.Errorf("plant %s: %w", pc.Name, err)
		}
		vendor := types.Vendor(pc.Vendor)
		marketType := parseMarketType(pc.MarketType)
		heartbeat := time.Duration(pc.HeartbeatIntervalSeconds) * time.Second

		var manager *session.Manager

		switch pc.Protocol {
		case "fix", "":
			plantCfg := &fixplant.Config{
				ApiKey:       apiKey,
				ApiSecret:    apiSecret,
				Passphrase:   passphrase,
				SenderCompId: pc.SenderCompID,
				TargetCompId: pc.TargetCompID,
				PortfolioId:  pc.PortfolioID,
				Vendor:       vendor,
				Broker:       pc.Broker,
				MarketType:   marketType,
			}
			plant := fixplant.NewPlant(plantCfg, store, book)

			settingsFile, err := os.Open(pc.SettingsFile)
			if err != nil {
				return fmt.Errorf("plant %s: open quickfix settings %s: %w", pc.Name, pc.SettingsFile, err)
			}
			settings, err := quickfix.ParseSettings(settingsFile)
			settingsFile.Close()
			if err != nil {
				return fmt.Errorf("plant %s: parse quickfix settings: %w", pc.Name, err)
			}
			initiator, err := quickfix.NewInitiator(plant, quickfix.NewMemoryStoreFactory(), settings, quickfix.NewScreenLogFactory())
			if err != nil {
				return fmt.Errorf("plant %s: build quickfix initiator: %w", pc.Name, err)
			}
			if err := initiator.Start(); err != nil {
				return fmt.Errorf("plant %s: start quickfix initiator: %w", pc.Name, err)
			}
			initiators = append(initiators, initiator)

			router.register(vendor, plant)
			router.registerBroker(pc.Broker, plant)
			manager = session.NewManager(plant, heartbeat)

		case "websocket":
			plantCfg := &wsplant.Config{
				URL:        pc.WebSocketURL,
				ApiKey:     apiKey,
				ApiSecret:  apiSecret,
				Vendor:     vendor,
				Broker:     pc.Broker,
				MarketType: marketType,
			}
			plant := wsplant.NewPlant(plantCfg, store, book)
			router.register(vendor, plant)
			router.registerBroker(pc.Broker, plant)
			manager = session.NewManager(plant, heartbeat)
			plant.AttachSession(manager)

		default:
			return fmt.Errorf("plant %s: unrecognized protocol %q", pc.Name, pc.Protocol)
		}

		if err := manager.Start(ctx); err != nil {
			log.Error().Err(err).Str("plant", pc.Name).Msg("plant failed to start, continuing without it")
			continue
		}
		if auditLog != nil {
			auditLog.SessionEvent(pc.Name, "started", "")
		}
		managers = append(managers, manager)
	}

	dispatcher := fanout.NewDispatcher(router, book)
	registry := subscription.New(dispatcher)
	dispatcher.AttachRegistry(registry)
	for _, plant := range router.plants {
		if attacher, ok := plant.(interface {
			AttachDispatcher(*fanout.Dispatcher)
		}); ok {
			attacher.AttachDispatcher(dispatcher)
		}
	}

	for _, ac := range cfg.Accounts {
		cash, err := decimal.NewFromString(ac.StartingCash)
		if err != nil {
			return fmt.Errorf("account %s/%s: starting_cash: %w", ac.Broker, ac.AccountID, err)
		}
		book.SetStartingCash(types.Account{Broker: ac.Broker, AccountID: ac.AccountID}, cash)
	}
	go book.PollAccounts(ctx, 0)

	server := gateway.NewServer(store, registry, book)
	server.Orders = router
	server.VendorInfo = router
	if auditLog != nil {
		server.AuditRecorder = auditLog.Record
	}

	go server.BroadcastLedgerEvents(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe(ctx, cfg.Gateway.ListenAddress) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("strategy gateway listener stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, m := range managers {
		if err := m.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("plant shutdown reported an error")
		}
	}
	for _, init := range initiators {
		init.Stop()
	}
	return nil
}

func parseMarketType(s string) types.MarketType {
	switch s {
	case "Futures":
		return types.MarketFutures
	case "Forex":
		return types.MarketForex
	case "CFD":
		return types.MarketCFD
	case "Crypto":
		return types.MarketCrypto
	case "Fundamentals":
		return types.MarketFundamentals
	default:
		return types.MarketUnspecified
	}
}
