package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	ddns "github.com/Travis-Britz/imds-duckdns"
	"github.com/Travis-Britz/imds-duckdns/internal/config"
	"github.com/Travis-Britz/imds-duckdns/internal/logging"
)

var gitCommit = "unknown"

const defaultConfigPath = "/etc/imds-duckdns.conf"

var flags = struct {
	ConfigPath string
	Once       bool
	Verbose    bool
	IP         string
	IPv6       string
}{}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "imds-duckdns",
		Short:         "Keep a DuckDNS record pointed at this instance's public address",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, fromEnv := os.LookupEnv("DDNS_CONFIG")
			flags.ConfigPath = configPath(flags.ConfigPath, fromEnv || cmd.Flags().Changed("config"))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx)
		},
	}
	root.Flags().StringVarP(&flags.ConfigPath, "config", "c", env("DDNS_CONFIG", defaultConfigPath), "Path to the configuration file (KEY=value or .ini); when the default file is absent only DDNS_* environment variables are read")
	root.Flags().BoolVar(&flags.Once, "once", false, "Run a single check and exit")
	root.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")
	root.Flags().StringVar(&flags.IP, "ip", "", "IPv4 address to set instead of asking the metadata service")
	root.Flags().StringVar(&flags.IPv6, "ipv6", "", "IPv6 address to set along with --ip")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build commit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "git commit %s\n", gitCommit)
		},
	})
	return root
}

func run(ctx context.Context) error {
	if flags.IPv6 != "" && flags.IP == "" {
		return errors.New("--ipv6 requires --ip")
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger, closer := logging.New(cfg.LogPath, flags.Verbose)
	defer closer.Close()
	log := logger.WithField("component", "ddns")

	if flags.ConfigPath != "" {
		if err := verifyPermissions(flags.ConfigPath); err != nil {
			log.Warn(err)
		}
	}
	log.Debugf("config is valid: %s", cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	options := []ddns.Option{
		ddns.WithLogger(log),
		ddns.WithInterval(cfg.CheckInterval),
		ddns.WithIPv6(cfg.EnableIPv6),
		ddns.UsingMetadataURL(cfg.MetadataURL),
		ddns.UsingUpdateURL(cfg.UpdateURL),
		ddns.WithUpdateRetry(cfg.UpdateAttempts, cfg.UpdateRetryDelay),
		ddns.WithHeartbeatEvery(cfg.HeartbeatEvery),
		ddns.WithMetrics(reg),
	}
	if flags.IP != "" {
		static, err := ddns.FromString(flags.IP, flags.IPv6)
		if err != nil {
			return fmt.Errorf("invalid --ip/--ipv6: %w", err)
		}
		log.Infof("using static addresses instead of the metadata service")
		options = append(options, ddns.UsingMetadata(static))
	}

	client, err := ddns.New(cfg.Domain, cfg.Token, options...)
	if err != nil {
		return fmt.Errorf("error creating ddns client: %w", err)
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, reg, log.WithField("component", "metrics"))
	}

	if flags.Once {
		err = client.RunDDNS(ctx)
	} else {
		err = client.RunDaemon(ctx)
	}
	if errors.Is(err, context.Canceled) {
		log.Info("received termination signal, exiting")
		return nil
	}
	return err
}

// configPath drops the default config file when it does not exist,
// leaving the environment as the only source. A path the user chose must exist.
func configPath(path string, explicit bool) string {
	if explicit || path == "" {
		return path
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return path
}

func env(envvar string, defaultvalue string) string {
	e, found := os.LookupEnv(envvar)
	if found {
		return e
	}
	return defaultvalue
}

// verifyPermissions checks that the config file holding the provider token is private.
func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking config file permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}

	return nil
}
