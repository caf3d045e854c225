package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxLogger adapts the pipeline logger to fx's event logger interface,
// so dependency-injection lifecycle events share the same output format.
type FxLogger struct{}

// NewFxLogger creates a new FxLogger.
func NewFxLogger() fxevent.Logger {
	return &FxLogger{}
}

// LogEvent logs fx lifecycle events at DEBUG level, surfacing failures at ERROR.
func (l *FxLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		Debugf("fx: OnStart hook executing: %s", e.FunctionName)
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			Errorf("fx: OnStart hook failed: %s: %v", e.FunctionName, e.Err)
		}
	case *fxevent.OnStopExecuting:
		Debugf("fx: OnStop hook executing: %s", e.FunctionName)
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			Errorf("fx: OnStop hook failed: %s: %v", e.FunctionName, e.Err)
		}
	case *fxevent.Provided:
		if e.Err != nil {
			Errorf("fx: error providing %s: %v", strings.Join(e.OutputTypeNames, ", "), e.Err)
		} else {
			Debugf("fx: provided %s", strings.Join(e.OutputTypeNames, ", "))
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			Errorf("fx: invoke failed: %s: %v", e.FunctionName, e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("fx: start failed: %v", e.Err)
		} else {
			Debugf("fx: started")
		}
	case *fxevent.Stopped:
		if e.Err != nil {
			Errorf("fx: stop failed: %v", e.Err)
		}
	}
}
