package command

import (
	"context"
	"time"

	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/scope"
)

func safeClock(clock types.Clock) types.Clock {
	if clock != nil {
		return clock
	}
	return types.SystemClock{}
}

func safeLogger(logger types.Logger) types.Logger {
	if logger != nil {
		return logger
	}
	return types.NopLogger{}
}

func safeScopeGuard(g scope.Guard) scope.Guard {
	return scope.Ensure(g)
}

func now(clock types.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now()
}

// logActivity records the entry and fires the activity hook. Sink failures
// are logged and never fail the command.
func logActivity(ctx context.Context, sink types.ActivitySink, hooks types.Hooks, logger types.Logger, record types.ActivityRecord) {
	if sink != nil {
		if err := sink.Log(ctx, record); err != nil {
			safeLogger(logger).Error("activity log failed", err, "verb", record.Verb)
			return
		}
	}
	emitActivityHook(ctx, hooks, record)
}

func emitActivityHook(ctx context.Context, hooks types.Hooks, record types.ActivityRecord) {
	if hooks.AfterActivity == nil {
		return
	}
	hooks.AfterActivity(ctx, record)
}

func emitPreferenceHook(ctx context.Context, hooks types.Hooks, event types.PreferenceEvent) {
	if hooks.AfterPreferenceChange == nil {
		return
	}
	hooks.AfterPreferenceChange(ctx, event)
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
