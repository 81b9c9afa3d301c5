// Command schemascan captures, stores, and compares database schema
// snapshots.
//
//	schemascan scan mydb --config schemascan.yaml --out snap.json
//	schemascan diff old.json new.json --mode strict
//	schemascan serve --config schemascan.yaml
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/canon"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/config"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dbconn"
	_ "github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect/mssql"
	_ "github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect/mysql"
	_ "github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect/postgres"
	_ "github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect/sqlite"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/introspect"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/logger"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/server"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/snapstore"
	snapminio "github.com/RahulRocky0019/Enterprise-Database-Migration/internal/snapstore/minio"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "schemascan",
		Short:         "Capture, store, and compare database schema snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config")

	root.AddCommand(scanCmd(&cfgPath))
	root.AddCommand(diffCmd())
	root.AddCommand(serveCmd(&cfgPath))
	return root
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
}

func scanCmd(cfgPath *string) *cobra.Command {
	var (
		engineFlag string
		dsnFlag    string
		outPath    string
		toStore    bool
	)
	cmd := &cobra.Command{
		Use:   "scan [source]",
		Short: "Introspect one database and emit the canonical snapshot",
		Long: `Introspect a database into a canonical snapshot document.

The target is either a named source from the config file, or an ad-hoc
--engine/--dsn pair. The snapshot is written to stdout or --out; --store
additionally persists it to the configured object store.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			var src *config.Source
			switch {
			case len(args) == 1:
				src, err = cfg.Source(args[0])
				if err != nil {
					return err
				}
			case engineFlag != "" && dsnFlag != "":
				src = &config.Source{Name: "adhoc", Engine: model.Engine(engineFlag), DSN: dsnFlag}
			default:
				return fmt.Errorf("name a configured source or pass --engine and --dsn")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			conn, err := dbconn.Open(ctx, src.Engine, src.DSN)
			if err != nil {
				return err
			}
			defer conn.Close()

			layers, err := cfg.LayerSet()
			if err != nil {
				return err
			}
			start := time.Now()
			snap, err := introspect.Introspect(ctx, conn, src.Engine, introspect.Options{
				AllowSchemas: cfg.Introspect.Schemas.Allow,
				DenySchemas:  cfg.Introspect.Schemas.Deny,
				Layers:       layers,
				Concurrency:  cfg.Introspect.Concurrency,
				LayerTimeout: cfg.Introspect.LayerTimeout,
				Log:          log,
			})
			if err != nil {
				return err
			}
			snap = canon.Canonicalize(snap)
			log.Infof("captured %s in %s (hash %s)",
				src.Name, introspect.Elapsed(start), canon.HashString(snap))

			if toStore {
				store, err := openStore(ctx, cfg)
				if err != nil {
					return err
				}
				defer store.Close()
				key, err := store.Put(ctx, snap)
				if err != nil {
					return err
				}
				log.Infof("stored as %s", key)
			}
			return writeSnapshot(snap, outPath)
		},
	}
	cmd.Flags().StringVar(&engineFlag, "engine", "", "engine tag for an ad-hoc target")
	cmd.Flags().StringVar(&dsnFlag, "dsn", "", "DSN for an ad-hoc target")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the snapshot to this file instead of stdout")
	cmd.Flags().BoolVar(&toStore, "store", false, "persist the snapshot to the configured object store")
	return cmd
}

func diffCmd() *cobra.Command {
	var modeFlag string
	cmd := &cobra.Command{
		Use:   "diff <from.json> <to.json>",
		Short: "Compare two snapshot documents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			b, err := readSnapshot(args[1])
			if err != nil {
				return err
			}
			mode := canon.ModeSemantic
			if modeFlag == "strict" {
				mode = canon.ModeStrict
			}
			changes := canon.Diff(a, b, mode)
			if len(changes) == 0 {
				fmt.Println("schemas are identical")
				return nil
			}
			for _, c := range changes {
				fmt.Println(c)
			}
			return fmt.Errorf("%d differences", len(changes))
		},
	}
	cmd.Flags().StringVar(&modeFlag, "mode", "semantic", "type comparison mode: semantic or strict")
	return cmd
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var store snapstore.Store
			if cfg.Store.Endpoint != "" {
				store, err = openStore(ctx, cfg)
				if err != nil {
					return err
				}
				defer store.Close()
			}

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           server.New(cfg, log, store).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			log.Infof("listening on %s", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

// --- helpers ---

func openStore(ctx context.Context, cfg *config.Config) (snapstore.Store, error) {
	if cfg.Store.Endpoint == "" {
		return nil, fmt.Errorf("no snapshot store configured")
	}
	sc := snapstore.DefaultConfig(cfg.Store.Endpoint, cfg.Store.AccessKey, cfg.Store.SecretKey)
	sc.UseSSL = cfg.Store.UseSSL
	if cfg.Store.Bucket != "" {
		sc.Bucket = cfg.Store.Bucket
	}
	return snapminio.New(ctx, sc)
}

func readSnapshot(path string) (*model.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%s is not a snapshot document: %w", path, err)
	}
	return &snap, nil
}

func writeSnapshot(snap *model.Snapshot, path string) error {
	doc, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	doc = append(doc, '\n')
	if path == "" {
		_, err = os.Stdout.Write(doc)
		return err
	}
	return os.WriteFile(path, doc, 0o644)
}
