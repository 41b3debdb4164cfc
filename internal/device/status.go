package device

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Status is the bridge's view of the motor and of the frame stream.
type Status struct {
	Motor  string
	Stream string
}

// PollStatus reports the bridge's motor and stream state every interval until
// ctx is done.
func PollStatus(ctx context.Context, b *Bridge, interval time.Duration, update func(Status)) {
	if b == nil || b.BaseURL == "" || update == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		update(b.Status(ctx))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Status fetches the motor and stream state once.
func (b *Bridge) Status(ctx context.Context) Status {
	return Status{
		Motor:  b.state(ctx, "motor"),
		Stream: b.state(ctx, "stream"),
	}
}

// state reads {module}/status/state through the same layout fallback as the
// tilt commands. Failures are reported in the value itself.
func (b *Bridge) state(ctx context.Context, module string) string {
	ctx, cancel := context.WithTimeout(ctx, b.timeout())
	defer cancel()
	code, body := b.do(ctx, http.MethodGet, BuildPaths(b.BaseURL, b.APIVersion, module, "status", "state"), nil)
	switch {
	case code == http.StatusServiceUnavailable:
		return "unreachable"
	case code != http.StatusOK:
		return fmt.Sprintf("http_%d", code)
	case body == "":
		return "ok"
	}
	if state, ok := parseState(body); ok {
		return state
	}
	return "ok"
}

// parseState accepts a bare JSON string or an object holding one under
// "state", "status" or "value", lower-cased.
func parseState(body string) (string, bool) {
	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return "", false
	}
	switch v := decoded.(type) {
	case string:
		return strings.ToLower(v), v != ""
	case map[string]any:
		for _, key := range []string{"state", "status", "value"} {
			if s, ok := v[key].(string); ok && s != "" {
				return strings.ToLower(s), true
			}
		}
	}
	return "", false
}
