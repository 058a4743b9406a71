// Copyright 2025 iskng
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/iskng/embed-star/core"
)

// requestTimeout is the per-attempt budget for one provider call.
const requestTimeout = 30 * time.Second

// maxErrorBody bounds how much of an error response is kept for the
// error message.
const maxErrorBody = 2048

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// postJSON sends a JSON body and returns the raw response bytes.
// Failures are classified per the retry policy: network errors and
// timeouts are transient; 429 and 5xx are transient; any other 4xx is
// terminal.
func postJSON(ctx context.Context, client *http.Client, op, url, bearer string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, core.E(core.KindProviderTerminal, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, core.E(core.KindProviderTerminal, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.E(core.KindCancelled, op, ctx.Err())
		}
		return nil, core.E(core.KindProviderTransient, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, core.E(core.KindProviderTransient, op, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(op, resp.StatusCode, data)
	}
	return data, nil
}

// classifyStatus maps a non-200 response to an error kind.
func classifyStatus(op string, status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	kind := core.KindProviderTerminal
	if status == http.StatusTooManyRequests || status >= 500 {
		kind = core.KindProviderTransient
	}
	return core.Ef(kind, op, "status %d: %s", status, bytes.TrimSpace(body))
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
