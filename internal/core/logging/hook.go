package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook copies session, request and user IDs from the event's
// context onto the log event.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	ctx := e.GetCtx()
	if ctx == nil || ctx == context.Background() {
		return
	}

	for _, key := range []contextKey{sessionIDKey, requestIDKey, userIDKey} {
		if v := stringValue(ctx, key); v != "" {
			e.Str(string(key), v)
		}
	}
}
