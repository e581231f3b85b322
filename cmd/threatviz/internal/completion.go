package internal

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zero-day-ai/threatviz/internal/llm"
)

// CompletionFunc is a Cobra ValidArgsFunction that returns completion suggestions
type CompletionFunc func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective)

// CompleteProvider suggests provider names and aliases.
func CompleteProvider(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix(llm.SupportedProviders(), toComplete), cobra.ShellCompDirectiveNoFileComp
}

// CompleteOutputFormat suggests the --output values.
func CompleteOutputFormat(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix([]string{string(FormatText), string(FormatJSON)}, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// CompleteIndexNames returns a completion function listing the index
// directories under root.
func CompleteIndexNames(root func() string) CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		entries, err := os.ReadDir(root())
		if err != nil {
			return []string{}, cobra.ShellCompDirectiveNoFileComp
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
				names = append(names, e.Name())
			}
		}
		return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

// NoCompletion disables completion for positional arguments.
func NoCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{}, cobra.ShellCompDirectiveNoFileComp
}

func filterPrefix(values []string, prefix string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.HasPrefix(v, prefix) {
			out = append(out, v)
		}
	}
	return out
}
