package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxpipe/voxpipe/internal/bus"
	"github.com/voxpipe/voxpipe/internal/config"
	"github.com/voxpipe/voxpipe/internal/daemon"
	"github.com/voxpipe/voxpipe/internal/history"
	"github.com/voxpipe/voxpipe/internal/logging"
	"github.com/voxpipe/voxpipe/internal/models"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "voxpipe",
	Short: "Voice dictation pipeline: capture, transcribe, process, inject",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logLevel, "")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.AddCommand(
		serveCmd(),
		toggleCmd(),
		cancelCmd(),
		statusCmd(),
		versionCmd(),
		stopCmd(),
		devicesCmd(),
		historyCmd(),
		modelsCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := config.NewManager()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return daemon.New(manager).Run()
		},
	}
}

func toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Start capturing, or finish the current utterance",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdToggle)
			if err != nil {
				return fmt.Errorf("failed to toggle capture: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Abort the in-flight utterance",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdCancel)
			if err != nil {
				return fmt.Errorf("failed to cancel: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get current pipeline state",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdStatus)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Get protocol version",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdVersion)
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdQuit)
			if err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdDevices)
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent utterances",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			path := cfg.History.Path
			if path == "" {
				path, err = history.DefaultPath()
				if err != nil {
					return err
				}
			}
			store, err := history.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer store.Close()

			entries, err := store.Recent(limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				label := "dictation"
				if e.CommandID != "" {
					label = "command:" + e.CommandID
				}
				fmt.Printf("%s  %-20s  %s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"), label, e.FinalText)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	return cmd
}

func modelsCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "models [model-id]",
		Short: "List local model files, or resolve one to its path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := models.NewManager(dir)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				path, ok := m.LocalPath(args[0])
				if !ok {
					return fmt.Errorf("model %q not present in %s", args[0], m.Dir())
				}
				fmt.Println(path)
				return nil
			}
			ids, err := m.List()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Printf("no model files in %s\n", m.Dir())
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "models directory (default ~/.cache/voxpipe/models)")
	return cmd
}
