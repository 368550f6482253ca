package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/omerimzali/mksub/pkg/config"
	"github.com/omerimzali/mksub/pkg/logging"
)

// NewRootCmd builds the mksub command. Each call returns an independent
// command with its own flag and viper state.
func NewRootCmd() *cobra.Command {
	var cfgFile string
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "mksub",
		Short: "mksub - Generate subdomains from a wordlist up to a given depth",
		Long: `mksub generates subdomains by prepending wordlist entries to base domains
up to a specified depth. Every depth from 1 to --level is produced.

Results are streamed to stdout and/or to one or more output files written
round-robin. Interrupt once to stop gracefully, twice to exit immediately.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Verbose: cfg.Verbose,
				Quiet:   cfg.Quiet,
				NoColor: cfg.NoColor,
			})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf))
			if err != nil {
				logger.Sugar().Debugf("automaxprocs: %v", err)
			}
			defer undo()

			return run(cmd.Context(), cfg, logger, streams{
				in:  cmd.InOrStdin(),
				out: cmd.OutOrStdout(),
				err: cmd.ErrOrStderr(),
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "Path to a config file (yaml, toml or json)")

	// Inputs
	flags.StringP("domain", "d", "", "Single base domain (e.g., example.com)")
	flags.String("domain-file", "", "File with base domains, one per line")
	flags.StringP("wordlist", "w", "", "Wordlist file (one token per line)")
	flags.StringP("regex", "r", "", "Optional RE2 regex to filter wordlist entries (matched anywhere)")
	flags.Bool("ci-regex", true, "Make the regex case-insensitive. Disable to use exact-case")

	// Generation
	flags.IntP("level", "l", 1, "Subdomain depth. Outputs include all depths in [1..level]")
	flags.IntP("threads", "t", 100, "Split the first-word partition into this many work units")
	flags.Int("max-threads", 100000, "Global hard cap on generation workers")
	flags.Float64("rate", 0, "Maximum names generated per second (0 = unlimited)")

	// Output
	flags.StringP("output", "o", "", "Write results to file instead of stdout")
	flags.Bool("silent", true, "Skip writing to stdout when --output is set")
	flags.Int("shards", 1, "Number of output shards; >1 writes multiple files round-robin")
	flags.Int("buffer-mb", 100, "Writer buffer flush threshold in MiB (per shard)")
	flags.Int("queue", 100000, "Size of each writer queue")
	flags.String("format", "color", "Console format: plain, color, json")
	flags.BoolP("no-color", "n", false, "Disable colored output")
	flags.Bool("progress", false, "Show a progress bar on stderr")

	// Shutdown
	flags.Duration("grace", config.Default().Grace, "How long to wait for writers after an interrupt")
	flags.Duration("timeout", config.Default().Timeout, "Absolute limit on waiting for writers after generation")

	// Logging
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.BoolP("quiet", "q", false, "Only log warnings and errors")

	if err := v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("bind flags: %v", err))
	}
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	return cmd
}

func Execute() error {
	return NewRootCmd().Execute()
}
