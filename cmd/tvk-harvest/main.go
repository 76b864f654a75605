// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Command tvk-harvest collects TrilioVault resources, pod logs and events from
// a Kubernetes cluster into a zip archive for troubleshooting.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/confighub/tvk-harvest/internal/clierr"
	"github.com/confighub/tvk-harvest/internal/config"
	"github.com/confighub/tvk-harvest/internal/kubeconfig"
	"github.com/confighub/tvk-harvest/internal/logging"
)

var (
	// BuildTag is set during build
	BuildTag = "dev"
	// BuildDate is set during build
	BuildDate = "unknown"
)

// Flag names
const (
	flagClustered  = "clustered"
	flagNamespaces = "namespaces"
	flagKubeconfig = "kubeconfig"
	flagLogLevel   = "log-level"
	flagNoClean    = "no-clean"
	flagOutputDir  = "output-dir"
	flagConfigFile = "config-file"

	// flagKeepSource is the older name of --no-clean.
	flagKeepSource = "keep-source-folder"
)

// flagKeys maps config keys to the flags that set them.
var flagKeys = map[string]string{
	config.KeyClustered:  flagClustered,
	config.KeyNamespaces: flagNamespaces,
	config.KeyKubeconfig: flagKubeconfig,
	config.KeyLogLevel:   flagLogLevel,
	config.KeyNoClean:    flagNoClean,
	config.KeyOutputDir:  flagOutputDir,
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tvk-harvest",
		Short: "Collect TrilioVault resources, logs and events into a zip archive",
		Long: `tvk-harvest - collect TrilioVault diagnostics from a cluster

tvk-harvest discovers the resources related to TrilioVault and writes them
into a directory tree named triliovault-DD-MM-YYYY-HH-MM-SS, which is then
compressed into a zip archive of the same name. It collects:

  - TrilioVault custom resources, CRDs, webhooks and operator CSVs
  - Restore and backup Jobs, their Pods and the Pods' container logs
  - Storage classes, volume snapshots and snapshot classes
  - Events of the collected objects

Exactly one of --clustered or --namespaces must be given.

Environment Variables:
  KUBECONFIG              Path to kubeconfig file (default: ~/.kube/config)
  TVK_HARVEST_<KEY>       Overrides a config file key, e.g. TVK_HARVEST_LOGLEVEL=debug
`,
		Example: `  # Harvest every namespace
  tvk-harvest --clustered

  # Harvest two namespaces and keep the directory next to the zip
  tvk-harvest -n trilio,backup --no-clean

  # Read settings from a file
  tvk-harvest -f harvest.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runHarvest,
	}

	flags := cmd.Flags()
	flags.BoolP(flagClustered, "c", false, "Harvest objects from every namespace")
	flags.StringSliceP(flagNamespaces, "n", nil, "Comma separated namespaces to harvest")
	flags.StringP(flagKubeconfig, "k", kubeconfig.DefaultPath(), "Path to the kubeconfig file")
	flags.StringP(flagLogLevel, "l", logging.DefaultLevel, "Log level (panic, fatal, error, warn, info, debug, trace)")
	flags.BoolP(flagNoClean, "s", false, "Keep the output directory next to the zip archive")
	flags.StringP(flagOutputDir, "o", ".", "Directory the output tree and archive are created in")
	flags.StringP(flagConfigFile, "f", "", "YAML file with values for the flags above")
	cmd.SetGlobalNormalizationFunc(aliasFlags)

	_ = cmd.RegisterFlagCompletionFunc(flagNamespaces, completeNamespaces)
	_ = cmd.RegisterFlagCompletionFunc(flagLogLevel, completeLogLevels)

	cmd.AddCommand(newVersionCmd(), newCompletionCmd())
	return cmd
}

// aliasFlags accepts --keep-source-folder for --no-clean.
func aliasFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == flagKeepSource {
		name = flagNoClean
	}
	return pflag.NormalizedName(name)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tvk-harvest version %s (built %s)\n", BuildTag, BuildDate)
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for tvk-harvest.

Bash:
  $ source <(tvk-harvest completion bash)
  # Or add to ~/.bashrc:
  $ tvk-harvest completion bash >> ~/.bashrc

Zsh:
  $ source <(tvk-harvest completion zsh)
  # Or install to fpath:
  $ tvk-harvest completion zsh > "${fpath[1]}/_tvk-harvest"

Fish:
  $ tvk-harvest completion fish | source

PowerShell:
  PS> tvk-harvest completion powershell | Out-String | Invoke-Expression
`,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.ExactArgs(1),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return clierr.Validationf("unsupported shell: %s", args[0])
			}
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, clierr.Pretty(err))
		os.Exit(1)
	}
}
