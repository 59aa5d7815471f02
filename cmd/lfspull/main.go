// cmd/lfspull/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"lfspull"
	"lfspull/internal/logging"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "lfspull",
	Short: "lfspull replaces git-lfs pointer files with their real content",
	Long: `lfspull pulls git-lfs managed files without a git-lfs installation.
It reads pointer files, negotiates downloads with the lfs server behind the
repository's remote and keeps verified objects in a local content cache, so
repeated pulls of the same object never touch the network twice.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("access-token", "a", "", "personal access token for the lfs server (env ACCESS_TOKEN)")
	rootCmd.PersistentFlags().IntP("max-retry", "m", 3, "maximum download attempts per object")
	rootCmd.PersistentFlags().Uint32P("timeout", "t", 0, "per-attempt timeout in seconds, 0 disables it (default derived from object size)")
	rootCmd.PersistentFlags().Int("randomizer-bytes", 8, "random bytes salted into cache temp file names")
	rootCmd.PersistentFlags().Bool("progress", false, "show progress bars even when stderr is no terminal")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	_ = viper.BindPFlag("access_token", rootCmd.PersistentFlags().Lookup("access-token"))
	_ = viper.BindEnv("access_token", "ACCESS_TOKEN")
	_ = viper.BindPFlag("max_retry", rootCmd.PersistentFlags().Lookup("max-retry"))
	_ = viper.BindPFlag("randomizer_bytes", rootCmd.PersistentFlags().Lookup("randomizer-bytes"))
	_ = viper.BindPFlag("progress", rootCmd.PersistentFlags().Lookup("progress"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	var pullCmd = &cobra.Command{
		Use:   "pull [file]",
		Short: "Pull a single pointer file",
		Long:  `Replaces the given pointer file with its real content, from the local cache or the lfs server.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := pullOptions(cmd)
			if err != nil {
				return err
			}

			mode, err := lfspull.PullFile(cmd.Context(), args[0], opts...)
			if err != nil {
				return fmt.Errorf("pulling %s: %w", args[0], err)
			}

			green := color.New(color.FgGreen).SprintFunc()
			line := fmt.Sprintf("%s %s: %s", green("✓"), args[0], coloredMode(mode))
			if info, err := os.Stat(args[0]); err == nil {
				line += " (" + humanize.Bytes(uint64(info.Size())) + ")"
			}
			fmt.Println(line)
			return nil
		},
	}

	var globCmd = &cobra.Command{
		Use:   "glob [pattern]",
		Short: "Pull every file matching a glob pattern",
		Long: `Pulls all files matching the pattern, which may use ** to cross directory
levels. Files that are no pointers are left untouched.`,
		Example: `  lfspull glob "assets/**/*.mp4"
  lfspull glob "*.bin" -a $TOKEN`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := pullOptions(cmd)
			if err != nil {
				return err
			}

			results, err := lfspull.PullGlob(cmd.Context(), args[0], opts...)
			if err != nil {
				return fmt.Errorf("pulling %s: %w", args[0], err)
			}
			if len(results) == 0 {
				fmt.Println("No files matched", args[0])
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("File", "Result")

			var totalBytes int64
			downloaded := 0
			for _, result := range results {
				table.Append(result.Path, coloredMode(result.Mode))
				if result.Mode == lfspull.DownloadedFromRemote {
					downloaded++
				}
				if info, err := os.Stat(result.Path); err == nil {
					totalBytes += info.Size()
				}
			}
			table.Render()

			fmt.Printf("\nPulled %d files (%s), %d freshly downloaded\n",
				len(results), humanize.Bytes(uint64(totalBytes)), downloaded)
			return nil
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a worktree and pull pointer files as they appear",
		Long: `Watches the directory tree and replaces pointer files with their content
shortly after they are created or written, until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			opts, err := pullOptions(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Println("Watching", root, "- press ctrl-c to stop")
			if err := lfspull.Watch(ctx, root, opts...); err != nil {
				return fmt.Errorf("watching %s: %w", root, err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(globCmd)
	rootCmd.AddCommand(watchCmd)
}

// initConfig merges an optional .lfspull.yaml from the home or working
// directory under the flag and environment layers.
func initConfig() {
	viper.SetConfigName(".lfspull")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()
}

func pullOptions(cmd *cobra.Command) ([]lfspull.Option, error) {
	level := "warn"
	if viper.GetBool("verbose") {
		level = "debug"
	}
	logger, err := logging.NewLogger(level)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	opts := []lfspull.Option{
		lfspull.WithAccessToken(viper.GetString("access_token")),
		lfspull.WithMaxRetry(viper.GetInt("max_retry")),
		lfspull.WithRandomizerBytes(viper.GetInt("randomizer_bytes")),
		lfspull.WithLogger(logger),
	}

	if viper.GetBool("progress") || term.IsTerminal(int(os.Stderr.Fd())) {
		opts = append(opts, lfspull.WithProgress(progressSink))
	}

	if cmd.Flags().Changed("timeout") {
		seconds, err := cmd.Flags().GetUint32("timeout")
		if err != nil {
			return nil, err
		}
		opts = append(opts, lfspull.WithTimeoutSeconds(seconds))
	}
	return opts, nil
}

func progressSink(oid string, size int64) io.Writer {
	short := oid
	if len(short) > 8 {
		short = short[:8]
	}
	return progressbar.DefaultBytes(size, "downloading "+short)
}

func coloredMode(mode lfspull.FilePullMode) string {
	switch mode {
	case lfspull.DownloadedFromRemote:
		return color.New(color.FgGreen).Sprint(mode.String())
	case lfspull.UsedLocalCache:
		return color.New(color.FgCyan).Sprint(mode.String())
	default:
		return color.New(color.FgYellow).Sprint(mode.String())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
