package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/pennyone/internal/model"
)

// IntentHook runs a script whose final expression is the file's intent
// string. A nil result means no intent.
type IntentHook struct {
	rt     *Runtime
	script string
}

// NewIntentHook binds a script path to a Runtime.
func NewIntentHook(rt *Runtime, script string) *IntentHook {
	return &IntentHook{rt: rt, script: script}
}

func (h *IntentHook) Intent(ctx context.Context, rec model.FileRecord, src []byte) (string, error) {
	result, err := h.rt.RunScript(ctx, h.script, recordGlobals(rec, src))
	if err != nil {
		return "", err
	}
	switch v := result.(type) {
	case *object.String:
		return strings.TrimSpace(v.Value()), nil
	case *object.NilType:
		return "", nil
	default:
		return "", fmt.Errorf("%w: intent script %s returned %s", ErrScriptResult, h.script, result.Type())
	}
}

// AnomalyHook runs a script whose final expression is a number in [0,1].
// Values outside the range are clamped.
type AnomalyHook struct {
	rt     *Runtime
	script string
}

// NewAnomalyHook binds a script path to a Runtime.
func NewAnomalyHook(rt *Runtime, script string) *AnomalyHook {
	return &AnomalyHook{rt: rt, script: script}
}

func (h *AnomalyHook) Anomaly(ctx context.Context, rec model.FileRecord, src []byte) (float64, error) {
	result, err := h.rt.RunScript(ctx, h.script, recordGlobals(rec, src))
	if err != nil {
		return 0, err
	}
	var v float64
	switch n := result.(type) {
	case *object.Float:
		v = n.Value()
	case *object.Int:
		v = float64(n.Value())
	case *object.NilType:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: anomaly script %s returned %s", ErrScriptResult, h.script, result.Type())
	}
	return min(max(v, 0), 1), nil
}
