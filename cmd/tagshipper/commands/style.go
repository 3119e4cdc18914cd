package commands

import (
	"github.com/fatih/color"

	"git.home.luguber.info/inful/tagshipper/internal/metrics"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	dimColor  = color.New(color.Faint)
)

func outcomeColor(outcome string) string {
	switch metrics.TickOutcome(outcome) {
	case metrics.TickSuccess:
		return okColor.Sprint(outcome)
	case metrics.TickPartial:
		return warnColor.Sprint(outcome)
	default:
		return failColor.Sprint(outcome)
	}
}
