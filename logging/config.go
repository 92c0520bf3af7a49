package logging

import "strings"

// ApplyConfig initializes the default logger from values resolved by
// package config (cobra flags / env / .env / defaults), rather than parsing
// its own flags the way the original logging config loader did.
func ApplyConfig(logDir, level string, traceModules []string) error {
	parsed, exists := levelFromString[strings.ToUpper(level)]
	if !exists {
		parsed = INFO
	}
	return InitLogger(logDir, parsed, traceModules)
}
