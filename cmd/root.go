package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/wayveil/internal/config"
	"github.com/bnema/wayveil/internal/daemon"
	"github.com/bnema/wayveil/internal/logger"
)

var (
	// Version is set during build
	Version = "0.1.0-dev"

	flagDelay      int64
	flagStartDelay int64
	flagColor      string
	flagCombo      string
	flagConfig     string

	rootCmd = &cobra.Command{
		Use:   "wayveil",
		Short: "Wayveil - input anonymization for Wayland",
		Long: `Wayveil anonymizes keyboard and mouse input patterns by injecting jitter
into input events before they reach the compositor. Designed specifically for
wlroots-based Wayland compositors. Will NOT work with X11.`,
		SilenceUsage: true,
		Run:          run,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.Flags().Int64VarP(&flagDelay, "delay", "d", config.DefaultConfig.Input.MaxDelayMS,
		"maximum delay of released events in milliseconds")
	rootCmd.Flags().Int64VarP(&flagStartDelay, "start-delay", "s", config.DefaultConfig.Input.StartDelayMS,
		"time to wait before startup in milliseconds")
	rootCmd.Flags().StringVarP(&flagColor, "color", "c", config.DefaultConfig.Cursor.Color,
		"overlay cursor color as AARRGGBB hex")
	rootCmd.Flags().StringVarP(&flagCombo, "esc-key-combo", "k", config.DefaultConfig.Input.EscapeKeyCombo,
		"escape key combo that stops the daemon")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "config file to use instead of the default paths")
}

func run(cmd *cobra.Command, args []string) {
	if os.Geteuid() != 0 {
		logger.Fatalf("Must be run as root!")
	}

	if flagConfig != "" {
		config.SetConfigPath(flagConfig)
	}
	if err := config.Init(); err != nil {
		logger.Fatalf("%v", err)
	}

	cfg := config.Get()
	if cmd.Flags().Changed("delay") {
		cfg.Input.MaxDelayMS = flagDelay
	}
	if cmd.Flags().Changed("start-delay") {
		cfg.Input.StartDelayMS = flagStartDelay
	}
	if cmd.Flags().Changed("color") {
		cfg.Cursor.Color = flagColor
	}
	if cmd.Flags().Changed("esc-key-combo") {
		cfg.Input.EscapeKeyCombo = flagCombo
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("%v", err)
	}

	// Let the session settle before grabbing every input device; grabbing
	// too early can race the compositor's own device setup.
	time.Sleep(time.Duration(cfg.Input.StartDelayMS) * time.Millisecond)

	engine, err := daemon.New(cfg)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if err := engine.Run(); err != nil {
		logger.Fatalf("%v", err)
	}
}
