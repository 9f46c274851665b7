// xferd is a commitment aggregator daemon.
//
// It accepts commitments over JSON-RPC, seals them into Merkle rounds and
// serves inclusion proofs.
//
// Usage:
//
//	xferd [--testnet] [--round=1s]   Run aggregator
//	xferd --help                     Show help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/statetransfer/config"
	"github.com/Klingon-tech/statetransfer/internal/ledger"
	klog "github.com/Klingon-tech/statetransfer/internal/log"
	"github.com/Klingon-tech/statetransfer/internal/rpc"
	"github.com/Klingon-tech/statetransfer/internal/storage"
)

func main() {
	cfg, flags, err := config.Load("xferd", os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if flags.Help {
		config.PrintUsage(os.Stdout)
		return
	}
	if flags.Version {
		fmt.Printf("xferd version %s\n", config.Version)
		return
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	db, err := storage.NewBadger(cfg.LedgerDir())
	if err != nil {
		return fmt.Errorf("open ledger db: %w", err)
	}
	defer db.Close()

	l, err := ledger.NewLocal(db)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	klog.Ledger.Info().
		Str("network", string(cfg.Network)).
		Uint64("height", l.BlockHeight()).
		Int("pending", l.PendingCount()).
		Dur("round", cfg.Aggregator.RoundInterval).
		Msg("Ledger opened")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx, cfg.Aggregator.RoundInterval)
	}()

	var srv *rpc.Server
	if cfg.RPC.Enabled {
		srv = rpc.New(cfg.RPCListenAddr(), l, cfg.RPC)
		if err := srv.Start(); err != nil {
			cancel()
			<-done
			return err
		}
	} else {
		klog.RPC.Warn().Msg("RPC server disabled")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	klog.Info().Msg("Shutting down")

	if srv != nil {
		if err := srv.Stop(); err != nil {
			klog.RPC.Error().Err(err).Msg("RPC shutdown")
		}
	}
	cancel()
	<-done

	// Seal commitments accepted after the last tick.
	if b, err := l.Seal(); err != nil {
		klog.Ledger.Error().Err(err).Msg("Final seal failed")
	} else if b != nil {
		klog.Ledger.Info().Uint64("height", b.Height).Int("commitments", len(b.RequestIDs)).Msg("Final round sealed")
	}
	return nil
}
