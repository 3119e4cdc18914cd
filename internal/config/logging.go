package config

import "strings"

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatAuto LogFormat = "auto"
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// NormalizeLogFormat maps user input to a LogFormat, defaulting to auto.
func NormalizeLogFormat(raw string) LogFormat {
	switch LogFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case LogFormatJSON:
		return LogFormatJSON
	case LogFormatText:
		return LogFormatText
	default:
		return LogFormatAuto
	}
}
