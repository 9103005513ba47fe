// Package logging holds the shared zerolog helpers: component loggers and
// context-scoped identifiers.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component names used for the cmp field.
const (
	CmpEventBus = "eventbus"
	CmpGemini   = "gemini"
	CmpIdentity = "identity"
	CmpProfiler = "profiler"
	CmpRecorder = "recorder"
	CmpScoring  = "scoring"
	CmpServer   = "server"
	CmpWorkflow = "workflow"
)

// Component returns the global logger tagged with cmp=name.
func Component(name string) zerolog.Logger {
	return With(log.Logger, name)
}

// With tags an injected logger with cmp=name. Services that receive their
// logger as a dependency use it instead of Component.
func With(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("cmp", name).Logger()
}

// ForSession binds base to one workflow session. Lines logged with a
// request context carry the same id through ContextHook.
func ForSession(base zerolog.Logger, sessionID string) zerolog.Logger {
	return base.With().Str(string(sessionIDKey), sessionID).Logger()
}
