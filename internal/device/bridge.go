package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Bridge drives the motor through the sensor bridge's HTTP command API.
type Bridge struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	Client     *http.Client
}

func NewBridge(baseURL, apiVersion string) *Bridge {
	return &Bridge{
		BaseURL:    baseURL,
		APIVersion: apiVersion,
		Timeout:    2 * time.Second,
		Client:     &http.Client{},
	}
}

// BuildPaths lists the URLs tried for one parameter, most specific first.
func BuildPaths(baseURL string, apiVersion string, module string, kind string, param string) []string {
	baseURL = strings.TrimRight(baseURL, "/")
	apiVersion = strings.Trim(apiVersion, "/")
	module = strings.Trim(module, "/")
	kind = strings.Trim(kind, "/")
	param = strings.TrimLeft(param, "/")
	if baseURL == "" || module == "" || kind == "" || param == "" {
		return nil
	}

	paths := make([]string, 0, 3)
	if apiVersion != "" {
		paths = append(paths, baseURL+"/"+module+"/api/"+apiVersion+"/"+kind+"/"+param)
		paths = append(paths, baseURL+"/api/"+apiVersion+"/"+module+"/"+kind+"/"+param)
	}
	paths = append(paths, baseURL+"/"+module+"/"+kind+"/"+param)
	return paths
}

func (b *Bridge) GetTiltDegree() (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout())
	defer cancel()
	code, body := b.do(ctx, http.MethodGet, BuildPaths(b.BaseURL, b.APIVersion, "motor", "config", "tilt_degree"), nil)
	if code != http.StatusOK {
		return 0, &Error{Op: "get_tilt_degree", Err: fmt.Errorf("http_%d: %s", code, body)}
	}
	value, err := parseNumber(body)
	if err != nil {
		return 0, &Error{Op: "get_tilt_degree", Err: err}
	}
	return value, nil
}

func (b *Bridge) SetTiltDegree(degree float64) error {
	if err := CheckTilt(degree); err != nil {
		return &Error{Op: "set_tilt_degree", Err: err}
	}
	payload, err := json.Marshal(map[string]any{"value": degree})
	if err != nil {
		return &Error{Op: "set_tilt_degree", Err: err}
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout())
	defer cancel()
	code, body := b.do(ctx, http.MethodPut, BuildPaths(b.BaseURL, b.APIVersion, "motor", "config", "tilt_degree"), payload)
	switch {
	case code == http.StatusUnprocessableEntity || code == http.StatusBadRequest:
		return &Error{Op: "set_tilt_degree", Err: fmt.Errorf("%w: %s", ErrTiltOutOfRange, body)}
	case code < 200 || code >= 300:
		return &Error{Op: "set_tilt_degree", Err: fmt.Errorf("http_%d: %s", code, body)}
	}
	return nil
}

// NumDevices asks the bridge how many sensors it can see.
func (b *Bridge) NumDevices(ctx context.Context) (int, error) {
	code, body := b.do(ctx, http.MethodGet, BuildPaths(b.BaseURL, b.APIVersion, "system", "status", "num_devices"), nil)
	if code != http.StatusOK {
		return 0, fmt.Errorf("num_devices: http_%d: %s", code, body)
	}
	value, err := parseNumber(body)
	if err != nil {
		return 0, fmt.Errorf("num_devices: %w", err)
	}
	return int(value), nil
}

func (b *Bridge) timeout() time.Duration {
	if b.Timeout <= 0 {
		return 2 * time.Second
	}
	return b.Timeout
}

func (b *Bridge) do(ctx context.Context, method string, paths []string, payload []byte) (int, string) {
	if len(paths) == 0 {
		return http.StatusBadRequest, "missing path"
	}
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	lastErr := "not found"
	for _, path := range paths {
		var body io.Reader
		if len(payload) > 0 {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, path, body)
		if err != nil {
			continue
		}
		if len(payload) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err.Error()
			continue
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			return resp.StatusCode, strings.TrimSpace(string(respBody))
		}
	}
	if lastErr != "not found" {
		return http.StatusServiceUnavailable, lastErr
	}
	return http.StatusNotFound, lastErr
}

// parseNumber accepts a bare JSON number or an object holding one under
// "value".
func parseNumber(body string) (float64, error) {
	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	switch v := decoded.(type) {
	case float64:
		return v, nil
	case map[string]any:
		if n, ok := v["value"].(float64); ok {
			return n, nil
		}
	}
	return 0, fmt.Errorf("no numeric value in %q", body)
}
