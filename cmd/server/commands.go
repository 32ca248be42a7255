package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sorathiyaom089/Student-Management-System/biz/handler"
	"github.com/sorathiyaom089/Student-Management-System/biz/router"
	"github.com/sorathiyaom089/Student-Management-System/biz/service"
	"github.com/sorathiyaom089/Student-Management-System/pkg/config"
	"github.com/sorathiyaom089/Student-Management-System/pkg/database"
	"github.com/sorathiyaom089/Student-Management-System/pkg/lock"
	"github.com/sorathiyaom089/Student-Management-System/pkg/redis"
	"github.com/sorathiyaom089/Student-Management-System/pkg/storage"
)

// Install lock timings when Redis is enabled.
const (
	installLockTTL     = 2 * time.Minute
	installLockTimeout = 30 * time.Second
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "student-management",
		Short:         "Student Management System server and installer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultFileName, "Config file path")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		if cfg.App.Debug {
			hlog.SetLevel(hlog.LevelDebug)
		} else {
			hlog.SetLevel(hlog.LevelInfo)
		}
		return cfg, nil
	}

	rootCmd.AddCommand(newServeCmd(load))
	rootCmd.AddCommand(newInstallCmd(load))
	rootCmd.AddCommand(newStatusCmd(load))
	rootCmd.AddCommand(newCheckCmd(load))
	rootCmd.AddCommand(newCheckDBCmd(load))
	rootCmd.AddCommand(newConfigCmd(load))
	return rootCmd
}

type loader func() (*config.Config, error)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			installer, cleanup, err := newInstaller(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			h := server.Default(server.WithHostPorts(cfg.Server.Address))
			router.Register(h, installer.Marker(), handler.NewInstallHandler(installer))

			hlog.Infof("[Server] %s %s listening on %s (%s)",
				cfg.App.Name, cfg.App.Version, cfg.Server.Address, installer.Marker().State())
			h.Spin()
			return nil
		},
	}
}

func newInstallCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the application and write the installation marker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			installer, cleanup, err := newInstaller(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			rec, err := installer.Install(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func newStatusCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the installation state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			status, err := service.NewInstaller(cfg, nil, nil).Status(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}
}

func newCheckCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the environment before installation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			store, err := storage.New(cfg.Storage, cfg.UploadPath())
			if err != nil {
				hlog.Warnf("[Check] storage unavailable: %v", err)
			}
			report := service.NewInstaller(cfg, nil, store).Check(cmd.Context())

			out := cmd.OutOrStdout()
			for _, item := range report.Items {
				mark := "ok"
				if !item.OK {
					mark = "FAIL"
				}
				fmt.Fprintf(out, "%-18s %-4s %s\n", item.Name, mark, item.Detail)
			}
			fmt.Fprintf(out, "%-18s %s\n", "state", report.State)
			for _, item := range report.Items {
				if !item.OK {
					return errCheckFailed
				}
			}
			return nil
		},
	}
}

func newCheckDBCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "check-db",
		Short: "Test the database connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if !database.TestConnection(cmd.Context(), cfg.Database) {
				fmt.Fprintln(cmd.OutOrStdout(), "database unreachable")
				return errCheckFailed
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database reachable")
			return nil
		},
	}
}

func newConfigCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the loaded configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg.MaskedSettings()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

// newInstaller wires the installer with the Redis install lock when enabled.
func newInstaller(ctx context.Context, cfg *config.Config) (*service.Installer, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cleanup := func() {}

	var locker lock.Locker
	client, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	if client != nil {
		hlog.Infof("[Redis] connected to %s, install lock enabled", cfg.Redis.Address)
		locker = lock.New(client, lock.InstallLockKey, installLockTTL, installLockTimeout)
		cleanup = func() { _ = client.Close() }
	}

	store, err := storage.New(cfg.Storage, cfg.UploadPath())
	if err != nil {
		hlog.Warnf("[Storage] %s storage unavailable: %v", cfg.Storage.Type, err)
	}

	return service.NewInstaller(cfg, locker, store), cleanup, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
