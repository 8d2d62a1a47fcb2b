package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// TestContext talks to a running server that sits behind the proxied
// identity mode, so each client is represented by the headers a verifying
// proxy would forward.
type TestContext struct {
	baseURL      string
	http         *http.Client
	fingerprints map[string]string
	client       string

	status int
	body   []byte
}

func NewTestContext() *TestContext {
	tc := &TestContext{
		baseURL:      strings.TrimRight(os.Getenv("CERTTRAIL_E2E_URL"), "/"),
		http:         &http.Client{Timeout: 10 * time.Second},
		fingerprints: map[string]string{},
	}
	if fp := os.Getenv("CERTTRAIL_E2E_CONTROLLER_FP"); fp != "" {
		tc.fingerprints["controller"] = fp
	}
	return tc
}

// Reset clears per-scenario state but keeps client definitions.
func (tc *TestContext) Reset() {
	tc.client = ""
	tc.status = 0
	tc.body = nil
}

func (tc *TestContext) DefineClient(name, fingerprint string) {
	tc.fingerprints[name] = fingerprint
}

func (tc *TestContext) UseClient(name string) error {
	if _, ok := tc.fingerprints[name]; !ok {
		return fmt.Errorf("unknown client %q", name)
	}
	tc.client = name
	return nil
}

func (tc *TestContext) Fingerprint(name string) string {
	return tc.fingerprints[name]
}

func (tc *TestContext) POST(path string, body interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return tc.do(http.MethodPost, path, bytes.NewReader(raw), nil)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) do(method, path string, body io.Reader, headers map[string]string) error {
	req, err := http.NewRequestWithContext(context.Background(), method, tc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if fp, ok := tc.fingerprints[tc.client]; ok && tc.client != "" {
		req.Header.Set("X-SSL-Client-Verify", "SUCCESS")
		req.Header.Set("X-SSL-Client-Fingerprint", fp)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.body, err = io.ReadAll(resp.Body)
	tc.status = resp.StatusCode
	return err
}

func (tc *TestContext) GetStatus() int {
	return tc.status
}

// GetResponseField resolves a dotted path such as "data.verified".
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var doc interface{}
	if err := json.Unmarshal(tc.body, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, part := range strings.Split(field, ".") {
		obj, ok := doc.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		if doc, ok = obj[part]; !ok {
			return nil, fmt.Errorf("field %q not found in response %s", field, tc.body)
		}
	}
	return doc, nil
}
