package main

import (
	"context"
	"crypto"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/rpc"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itiky/educhain-dao/config"
	"github.com/itiky/educhain-dao/identity"
	"github.com/itiky/educhain-dao/logging"
	"github.com/itiky/educhain-dao/model"
	"github.com/itiky/educhain-dao/service/server"
	"github.com/itiky/educhain-dao/storage"
)

const (
	FlagBatchChSize = "batch-ch-size"

	issuerName    = "educhain-identity"
	audienceName  = "educhain-governance"
	seedPrincipal = model.Principal("seed")
)

// GetServerCmd returns RPC-server start command.
func GetServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start governance and identity RPC services",
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			cfg, err := config.LoadServer(cmd.Flags())
			if err != nil {
				log.Fatalf("config: %v", err)
			}
			chSize, err := cmd.Flags().GetInt(FlagBatchChSize)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagBatchChSize, err)
			}

			logger, err := logging.Setup(cfg.Log.LoggingOptions())
			if err != nil {
				log.Fatalf("logging: %v", err)
			}

			ctx := context.Background()

			// Init keys
			identityKey, err := loadOrGenerateKey(cfg.Keys.Identity, "identity", logger)
			if err != nil {
				log.Fatalf("identity key: %v", err)
			}
			rootKey, err := loadOrGenerateKey(cfg.Keys.Root, "root", logger)
			if err != nil {
				log.Fatalf("root key: %v", err)
			}

			issuer, err := identity.NewIssuer(identityKey, issuerName, audienceName, cfg.Issuer.TTL)
			if err != nil {
				log.Fatalf("issuer init: %v", err)
			}
			certifier := identity.NewCertifier(rootKey, audienceName)

			// Init storage
			ledger, err := openLedger(ctx, cfg)
			if err != nil {
				log.Fatalf("storage init: %v", err)
			}
			defer ledger.Close()

			// Init services
			svc, err := server.NewGovernanceService(ledger, issuer, certifier, chSize, logger)
			if err != nil {
				log.Fatalf("service init: %v", err)
			}
			idSvc, err := identity.NewIdentityService(issuer, logger)
			if err != nil {
				log.Fatalf("identity service init: %v", err)
			}

			// Start server
			rpcServer := rpc.NewServer()
			if err := rpcServer.Register(svc); err != nil {
				log.Fatalf("RPC server: register: %v", err)
			}
			if err := rpcServer.Register(idSvc); err != nil {
				log.Fatalf("RPC server: register: %v", err)
			}
			svc.Start()

			listener, err := net.Listen("tcp", cfg.Listen)
			if err != nil {
				log.Fatalf("RPC server: listen: %v", err)
			}
			defer listener.Close()

			go rpcServer.Accept(listener)

			rootPEM, err := identity.EncodePublicKey(certifier.PublicKey())
			if err != nil {
				log.Fatalf("root key encode: %v", err)
			}
			logger.Info("RPC server started", "address", listener.Addr().String(), "version", ledger.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "Root key (pin it with --%s for production clients):\n%s", config.FlagRootKey, rootPEM)

			// Wait for signal
			signalCh := make(chan os.Signal, 1)
			signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
			<-signalCh

			svc.Stop()
			report := svc.Monitor().Report()
			logger.Info("RPC server stopped", "ops_handled", report.OpsHandled, "reads", report.ReadsHandled, "writes", report.WritesHandled, "rejected", report.Rejected)
		},
	}
	cmd.Flags().String(config.FlagListen, ":2412", "(optional) listen address")
	cmd.Flags().String(config.FlagStoragePath, "", "(optional) SQLite journal path (in-memory if empty)")
	cmd.Flags().String(config.FlagSeedPath, "", "(optional) YAML seed file applied to an empty ledger")
	cmd.Flags().Int(FlagBatchChSize, 50, "(optional) input operation channel limit")

	return cmd
}

// openLedger restores the ledger from the journal (if configured) and applies the seed.
func openLedger(ctx context.Context, cfg config.ServerConfig) (*storage.Ledger, error) {
	ledger := storage.NewLedger()
	if cfg.Storage.Path != "" {
		journal, err := storage.OpenSQLJournal(ctx, cfg.Storage.Path)
		if err != nil {
			return nil, err
		}

		ledger, err = storage.NewLedgerFromJournal(ctx, journal)
		if err != nil {
			journal.Close()
			return nil, err
		}
	}

	if cfg.Seed.Path != "" {
		seed, err := storage.LoadSeed(cfg.Seed.Path)
		if err != nil {
			ledger.Close()
			return nil, err
		}
		if err := ledger.ApplySeed(ctx, seed, seedPrincipal, time.Now()); err != nil {
			ledger.Close()
			return nil, err
		}
	}

	return ledger, nil
}

// loadOrGenerateKey parses the configured key or generates an ephemeral one.
func loadOrGenerateKey(s, name string, logger *slog.Logger) (crypto.Signer, error) {
	if s != "" {
		return identity.ParsePrivateKey(s)
	}

	logger.Warn("key is not configured, using an ephemeral one", "key", name)

	return identity.GenerateKey()
}

func init() {
	rootCmd.AddCommand(GetServerCmd())
}
