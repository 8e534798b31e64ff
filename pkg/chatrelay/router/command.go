package router

import (
	"strconv"
	"strings"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

// commandKind tags what a classified slash command asks the router to do.
type commandKind string

const (
	cmdSearchMode commandKind = "search_mode"
	cmdSource     commandKind = "source"
	cmdImagine    commandKind = "imagine"
	cmdWeather    commandKind = "weather"
	cmdForecast   commandKind = "forecast"
)

type command struct {
	kind commandKind
	mode model.SearchMode
	arg  string
}

// slashCommands maps each literal command token (spec.md §4.1 step 6) to
// its search mode, for the commands that are thin wrappers over a search
// mode.
var slashCommands = map[string]model.SearchMode{
	"/search":     model.ModeSearch,
	"/news":       model.ModeNews,
	"/wiki":       model.ModeWiki,
	"/images":     model.ModeImages,
	"/videos":     model.ModeVideos,
	"/jmail":      model.ModeJmail,
	"/lc_cyraxx":  model.ModeLolcowCyraxx,
	"/lc_larson":  model.ModeLolcowLarson,
}

// parseSlashCommand splits a leading "/token" off prompt and classifies it
// (spec.md §4.1 step 6, command classification a-g). ok is false for plain
// chat text.
func parseSlashCommand(prompt string) (command, bool) {
	trimmed := strings.TrimSpace(prompt)
	if !strings.HasPrefix(trimmed, "/") {
		return command{}, false
	}
	fields := strings.SplitN(trimmed, " ", 2)
	token := strings.ToLower(fields[0])
	arg := ""
	if len(fields) == 2 {
		arg = strings.TrimSpace(fields[1])
	}

	if mode, ok := slashCommands[token]; ok {
		return command{kind: cmdSearchMode, mode: mode, arg: arg}, true
	}
	switch token {
	case "/source":
		return command{kind: cmdSource, arg: arg}, true
	case "/imagine":
		return command{kind: cmdImagine, arg: arg}, true
	case "/weather":
		return command{kind: cmdWeather, arg: arg}, true
	case "/forecast":
		return command{kind: cmdForecast, arg: arg}, true
	}
	return command{}, false
}

// parsePositiveInt reports whether text is a bare positive decimal integer
// (a numeric-selection reply candidate, spec.md §4.1 step 6 case a).
func parsePositiveInt(text string) (int, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, false
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// parseForecastArgs splits "<location> [days]" (spec.md §6's /forecast
// command), defaulting days to 3 and clamping to [1,7] when a trailing
// integer is present.
func parseForecastArgs(arg string) (location string, days int) {
	days = 3
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		return "", days
	}
	last := fields[len(fields)-1]
	if n, ok := parsePositiveInt(last); ok && len(fields) > 1 {
		if n > 7 {
			n = 7
		}
		return strings.Join(fields[:len(fields)-1], " "), n
	}
	return arg, days
}
