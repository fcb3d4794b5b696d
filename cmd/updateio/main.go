package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/updateio/updateio/internal/log"
	"github.com/updateio/updateio/internal/model"
	"github.com/updateio/updateio/internal/service"
)

var (
	userConfigPath string // /default/config/path/updateio on given OS
	configPath     string // actual config file used
	config         model.Config
	logOutput      io.Closer

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagRefresh        bool   // list --refresh
	flagOnce           bool   // run --once
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		d = "."
	}
	userConfigPath = filepath.Join(d, "updateio")
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is "+service.ConfigFile+" in "+userConfigPath+" or in current directory")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	// errors are logged by main
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initUpdateio
	rootCmd.PersistentPostRun = func(*cobra.Command, []string) {
		if logOutput != nil {
			_ = logOutput.Close()
		}
	}

	listCmd.Flags().BoolVar(&flagRefresh, "refresh", false, "ignore the cached list")
	runCmd.Flags().BoolVar(&flagOnce, "once", false, "sweep once and exit")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("updateio failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "updateio",
	Short:        "Keeps steamcmd managed game servers up to date",
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list the apps installed through steamcmd",
	Args:  cobra.NoArgs,
	RunE:  doList,
}

var checkCmd = &cobra.Command{
	Use:   "check <appid>",
	Short: "check whether an app has a pending update",
	Args:  cobra.ExactArgs(1),
	RunE:  doCheck,
}

var updateCmd = &cobra.Command{
	Use:   "update <appid>",
	Short: "update an app, progress is printed as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE:  doUpdate,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "check and optionally update all installed apps on schedule",
	Args:  cobra.NoArgs,
	RunE:  doRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of updateio",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("updateio: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:   %s\n", configPath)
		}
		fmt.Printf("updateio: %s\n", info.Main.Version)
		fmt.Printf("go:       %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:   %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:     %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:    %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func commandContext(cmd *cobra.Command) context.Context {
	attrs := slog.Group("updateio",
		slog.String("cmd", cmd.Name()),
		slog.Int("pid", os.Getpid()),
	)
	return log.ContextAttrs(cmd.Context(), attrs)
}

func doList(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	manager, err := service.NewManagerFromConfig(config)
	if err != nil {
		return err
	}

	list := manager.InstalledApps
	if flagRefresh {
		list = manager.RefreshInstalledApps
	}
	apps, err := list(ctx)
	if err != nil {
		return err
	}
	for _, app := range apps {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", app.AppID, app.Name, app.InstallDir)
	}
	return nil
}

func doCheck(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	id, err := model.ParseAppID(args[0])
	if err != nil {
		return err
	}
	manager, err := service.NewManagerFromConfig(config)
	if err != nil {
		return err
	}

	needed, err := manager.CheckForUpdate(ctx, id)
	if err != nil {
		return err
	}
	if needed {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: update available\n", id)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: up to date\n", id)
	}
	return nil
}

func doUpdate(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	id, err := model.ParseAppID(args[0])
	if err != nil {
		return err
	}
	manager, err := service.NewManagerFromConfig(config)
	if err != nil {
		return err
	}

	sink := service.NewJSONSink(cmd.OutOrStdout(), id)
	err = manager.Update(ctx, id, service.Tee(
		sink.Progress,
		service.LogSink(ctx, slog.Default(), id),
	))
	if err != nil {
		return err
	}
	return sink.Err()
}

func doRun(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	manager, err := service.NewManagerFromConfig(config)
	if err != nil {
		return err
	}
	return service.Run(ctx, manager, config.Schedule, flagOnce)
}

func initUpdateio(cmd *cobra.Command, _ []string) error {
	if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else if envConfig, ok := os.LookupEnv("UPDATEIO_CONFIG"); ok && envConfig != "" {
		configPath = envConfig
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, service.ConfigFile)
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		configPath = filepath.Join(userConfigPath, service.ConfigFile)
		if err := service.WriteConfig(configPath, model.DefaultConfig()); err != nil {
			return err
		}
	}

	var err error
	config, err = service.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// initialize logging, --verbose has a precedence over config file
	out, err := log.Output(config.Log.Path)
	if err != nil {
		return err
	}
	logger, err := log.New(out, config.Log, flagVerbose)
	if err != nil {
		_ = out.Close()
		return err
	}
	logOutput = out
	slog.SetDefault(logger)

	slog.DebugContext(cmd.Context(), "updateio run", "configPath", configPath)
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
