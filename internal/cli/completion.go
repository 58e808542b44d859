package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/graph"
	"github.com/matzehuels/orbit/pkg/pipeline"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for orbit.

To load completions:

Bash:
  $ source <(orbit completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ orbit completion bash > /etc/bash_completion.d/orbit
  # macOS:
  $ orbit completion bash > $(brew --prefix)/etc/bash_completion.d/orbit

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ orbit completion zsh > "${fpath[1]}/_orbit"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ orbit completion fish | source

  # To load completions for each session, execute once:
  $ orbit completion fish > ~/.config/fish/completions/orbit.fish

PowerShell:
  PS> orbit completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> orbit completion powershell > orbit.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
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
			}
			return nil
		},
	}

	return cmd
}

// registerViewCompletions adds value completion for the shared view flags.
func registerViewCompletions(cmd *cobra.Command) {
	tiers := make([]string, 0, snapshot.NumTiers)
	for _, t := range snapshot.Tiers {
		tiers = append(tiers, t.String())
	}
	_ = cmd.RegisterFlagCompletionFunc("tier", cobra.FixedCompletions(tiers, cobra.ShellCompDirectiveNoFileComp))
	_ = cmd.RegisterFlagCompletionFunc("community", cobra.FixedCompletions(
		[]string{graph.CommunityLouvain, graph.CommunityLeiden}, cobra.ShellCompDirectiveNoFileComp))
}

// registerFormatCompletion adds value completion for --format.
func registerFormatCompletion(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(
		pipeline.FormatNames(), cobra.ShellCompDirectiveNoFileComp))
}
