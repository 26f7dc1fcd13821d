package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/reqfaster-debug/bunker-ws/internal/character"
	"github.com/reqfaster-debug/bunker-ws/internal/game"
)

type Config struct {
	bind            string
	port            int
	db              string
	minPlayers      int
	votingWindow    time.Duration
	nameLimit       int
	maleWeight      float64
	femaleWeight    float64
	youngDivisor    int
	adultDivisor    int
	allowSelfTarget bool
	snapshotEvery   time.Duration
	verbose         bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.minPlayers < 2 {
		return fmt.Errorf("invalid --min-players (must be at least 2): %d", c.minPlayers)
	}
	if c.nameLimit < 1 {
		return fmt.Errorf("invalid --name-limit (must be positive): %d", c.nameLimit)
	}
	if c.maleWeight < 0 || c.femaleWeight < 0 || c.maleWeight+c.femaleWeight > 1 {
		return errors.New("gender weights must be non-negative and sum to at most 1")
	}
	if c.youngDivisor < 1 || c.adultDivisor < 1 {
		return errors.New("experience divisors must be positive")
	}
	if c.votingWindow <= 0 {
		return errors.New("invalid --voting-window (must be positive)")
	}
	return nil
}

func (c *Config) rules() game.Rules {
	return game.Rules{
		MinPlayers:      c.minPlayers,
		NameLimit:       c.nameLimit,
		VotingWindow:    c.votingWindow,
		AllowSelfTarget: c.allowSelfTarget,
	}
}

func (c *Config) params() character.Params {
	return character.Params{
		MaleWeight:   c.maleWeight,
		FemaleWeight: c.femaleWeight,
		YoungDivisor: c.youngDivisor,
		AdultDivisor: c.adultDivisor,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BUNKER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "bunker-server",
		Short:         "Realtime coordination server for the bunker survival party game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	defaults := game.DefaultRules()
	genDefaults := character.DefaultParams()

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: BUNKER_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: BUNKER_PORT)")
	fs.StringVar(&cfg.db, "db", "bunker.db", "path to the sqlite snapshot database (env: BUNKER_DB)")
	fs.IntVar(&cfg.minPlayers, "min-players", defaults.MinPlayers, "minimum roster size to start a game (env: BUNKER_MIN_PLAYERS)")
	fs.DurationVar(&cfg.votingWindow, "voting-window", defaults.VotingWindow, "length of a voting session (env: BUNKER_VOTING_WINDOW)")
	fs.IntVar(&cfg.nameLimit, "name-limit", defaults.NameLimit, "maximum display name length (env: BUNKER_NAME_LIMIT)")
	fs.Float64Var(&cfg.maleWeight, "male-weight", genDefaults.MaleWeight, "male gender draw weight (env: BUNKER_MALE_WEIGHT)")
	fs.Float64Var(&cfg.femaleWeight, "female-weight", genDefaults.FemaleWeight, "female gender draw weight, remainder is neutral (env: BUNKER_FEMALE_WEIGHT)")
	fs.IntVar(&cfg.youngDivisor, "young-divisor", genDefaults.YoungDivisor, "experience divisor for characters aged 24 or less (env: BUNKER_YOUNG_DIVISOR)")
	fs.IntVar(&cfg.adultDivisor, "adult-divisor", genDefaults.AdultDivisor, "experience divisor for characters over 24 (env: BUNKER_ADULT_DIVISOR)")
	fs.BoolVar(&cfg.allowSelfTarget, "allow-self-target", defaults.AllowSelfTarget, "allow the host to kick or mark dead themselves (env: BUNKER_ALLOW_SELF_TARGET)")
	fs.DurationVar(&cfg.snapshotEvery, "snapshot-every", 5*time.Minute, "periodic snapshot cadence, 0 disables (env: BUNKER_SNAPSHOT_EVERY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: BUNKER_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}
