package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ahrav/go-benchy/internal/domain"
)

// maxToolResponseBytes caps how much of a remote response is read. Tool
// output feeds straight back into the conversation, so a misbehaving
// endpoint must not be able to flood the next model round.
const maxToolResponseBytes = 1 << 20

// httpTool relays an invocation to a remote endpoint. GET requests encode
// arguments as query parameters; every other method sends the raw argument
// object as a JSON body.
type httpTool struct {
	name     string
	endpoint string
	method   string
	client   *http.Client
}

func newHTTPTool(def domain.ToolDefinition, client *http.Client) *httpTool {
	method := strings.ToUpper(def.Binding.Method)
	if method == "" {
		method = http.MethodGet
	}
	return &httpTool{
		name:     def.Name,
		endpoint: def.Binding.Endpoint,
		method:   method,
		client:   client,
	}
}

func (t *httpTool) execute(ctx context.Context, args json.RawMessage) (string, error) {
	params, err := decodeArgumentMap(args)
	if err != nil {
		return "", &ToolArgumentError{Tool: t.name, Err: err}
	}

	req, err := t.buildRequest(ctx, params, args)
	if err != nil {
		return "", &ToolExecutionError{Tool: t.name, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &ToolExecutionError{Tool: t.name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxToolResponseBytes))
	if err != nil {
		return "", &ToolExecutionError{Tool: t.name, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &ToolExecutionError{Tool: t.name, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}

func (t *httpTool) buildRequest(ctx context.Context, params map[string]any, args json.RawMessage) (*http.Request, error) {
	if t.method == http.MethodGet {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.URL.RawQuery = encodeQuery(params)
		return req, nil
	}

	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	req, err := http.NewRequestWithContext(ctx, t.method, t.endpoint, bytes.NewReader(args))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// decodeArgumentMap parses arguments for HTTP relay. Numbers stay as
// json.Number so integer arguments keep their exact wire form in query
// strings instead of picking up float formatting.
func decodeArgumentMap(args json.RawMessage) (map[string]any, error) {
	if len(bytes.TrimSpace(args)) == 0 {
		return map[string]any{}, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(args))
	decoder.UseNumber()

	var params map[string]any
	if err := decoder.Decode(&params); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

// encodeQuery renders arguments as query parameters. Arrays are joined with
// commas, the list convention the annotation services expect, and null
// arguments are omitted entirely.
func encodeQuery(params map[string]any) string {
	values := url.Values{}
	for key, value := range params {
		if value == nil {
			continue
		}
		values.Set(key, queryValue(value))
	}
	return values.Encode()
}

func queryValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, queryValue(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}
