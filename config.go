package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind          string
	danceDuration time.Duration
	graceWindow   time.Duration
	leadIn        time.Duration
	port          int
	prefix        string
	profile       bool
	roomTimeout   time.Duration
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
	voteDuration  time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.danceDuration <= 0 || c.voteDuration <= 0 {
		return errors.New("--dance-duration and --vote-duration must be positive")
	}
	if c.leadIn < 0 {
		return errors.New("--lead-in cannot be negative")
	}
	if c.graceWindow <= 0 {
		return errors.New("--grace-window must be positive")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("DANCEFLOOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "dancefloor",
		Short:         "An impostor dance party game, served as a single self-contained webapp.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: DANCEFLOOR_BIND)")
	fs.DurationVar(&cfg.danceDuration, "dance-duration", 30*time.Second, "default length of the dance phase (env: DANCEFLOOR_DANCE_DURATION)")
	fs.DurationVar(&cfg.graceWindow, "grace-window", 60*time.Second, "time a disconnected player may reconnect before removal (env: DANCEFLOOR_GRACE_WINDOW)")
	fs.DurationVar(&cfg.leadIn, "lead-in", 5*time.Second, "delay between round start and synchronized playback (env: DANCEFLOOR_LEAD_IN)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: DANCEFLOOR_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: DANCEFLOOR_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: DANCEFLOOR_PROFILE)")
	fs.DurationVar(&cfg.roomTimeout, "room-timeout", 60*time.Minute, "time before idle rooms are ended (env: DANCEFLOOR_ROOM_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: DANCEFLOOR_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: DANCEFLOOR_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: DANCEFLOOR_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: DANCEFLOOR_VERSION)")
	fs.DurationVar(&cfg.voteDuration, "vote-duration", 30*time.Second, "default length of the voting phase (env: DANCEFLOOR_VOTE_DURATION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("dancefloor v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
