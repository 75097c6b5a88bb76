package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hamzawahab/hotdrop/internal/commands"
	"github.com/hamzawahab/hotdrop/internal/config"
	"github.com/hamzawahab/hotdrop/internal/coordinator"
	"github.com/hamzawahab/hotdrop/internal/hotkey/global"
	"github.com/hamzawahab/hotdrop/internal/logger"
	"github.com/hamzawahab/hotdrop/internal/session"
	"github.com/hamzawahab/hotdrop/internal/ui"
)

type rootFlags struct {
	cfgFile        string
	noGlobalHotkey bool
	noAnnounce     bool
	discover       bool
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var flags rootFlags

	root := &cobra.Command{
		Use:   "hotdrop",
		Short: "Push a single file across the LAN with a global hotkey",
		Long: `hotdrop sends one file over TCP when you press a key combination.

Run "hotdrop server" on the receiving machine and choose a save folder with
its hotkey (ctrl+shift+r by default). Run "hotdrop client -s <ip>" on the
sending machine and press its hotkey (ctrl+shift+s) to pick a file and send it.

Without a subcommand hotdrop asks which mode to run in.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			choice, err := ui.PromptRole(os.Stdin, cmd.OutOrStdout())
			if errors.Is(err, ui.ErrInvalidChoice) {
				fmt.Fprintln(cmd.OutOrStdout(), "Invalid selection; exiting.")
				return nil
			}
			if err != nil {
				return err
			}
			cfg, err := loadConfig(v, &flags)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, session.Options{Role: choice.Role, ServerHost: choice.Server})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.cfgFile, "config", "", "config file (default is $HOTDROP_HOME/config.yaml)")
	pf.Int("port", config.DefaultPort, "TCP port the server listens on and the client dials")
	pf.BoolP("verbose", "v", false, "write debug lines to the log file")
	pf.BoolVar(&flags.noGlobalHotkey, "no-global-hotkey", false, "do not grab OS-wide hotkeys; use @pick in the console instead")
	_ = v.BindPFlag("port", pf.Lookup("port"))
	_ = v.BindPFlag("verbose", pf.Lookup("verbose"))

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Receive files into a folder chosen with the hotkey",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, &flags)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, session.Options{Role: coordinator.RoleReceiver})
		},
	}
	serverCmd.Flags().StringP("hotkey", "k", config.DefaultServerHotkey, "hotkey that opens the save folder picker")
	serverCmd.Flags().BoolVar(&flags.noAnnounce, "no-announce", false, "do not advertise this server over mDNS")
	_ = v.BindPFlag("server.hotkey", serverCmd.Flags().Lookup("hotkey"))

	clientCmd := &cobra.Command{
		Use:   "client",
		Short: "Send a file picked with the hotkey to a server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, &flags)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, session.Options{Role: coordinator.RoleSender, Discover: flags.discover})
		},
	}
	clientCmd.Flags().StringP("server", "s", config.DefaultServerHost, "server address, host or host:port")
	clientCmd.Flags().StringP("hotkey", "k", config.DefaultClientHotkey, "hotkey that opens the file picker")
	clientCmd.Flags().BoolVar(&flags.discover, "discover", false, "find the server over mDNS instead of --server")
	_ = v.BindPFlag("client.server", clientCmd.Flags().Lookup("server"))
	_ = v.BindPFlag("client.hotkey", clientCmd.Flags().Lookup("hotkey"))

	root.AddCommand(serverCmd, clientCmd)
	return root
}

func loadConfig(v *viper.Viper, flags *rootFlags) (*config.Config, error) {
	if err := config.Init(v, flags.cfgFile); err != nil {
		return nil, err
	}
	if flags.noGlobalHotkey {
		v.Set("hotkey.global", false)
	}
	if flags.noAnnounce {
		v.Set("server.announce", false)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// run starts one role and blocks until the console exits or ctx is done.
func run(ctx context.Context, cfg *config.Config, opts session.Options) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}
	log, err := logger.New(cfg.LogDir, cfg.Verbose)
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	if cfg.Hotkey.Global {
		opts.Global = global.New()
	}

	sess, err := session.New(ctx, cfg, log, opts)
	if err != nil {
		log.Error("startup failed: %v", err)
		_ = log.Close()
		return err
	}
	defer sess.Close()

	console, err := ui.New(sess, commands.New(sess))
	if err != nil {
		return fmt.Errorf("start console: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		err := sess.Run(ctx)
		cancel()
		done <- err
	}()

	console.Run(ctx)
	cancel()
	return <-done
}
