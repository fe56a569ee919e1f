package main

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/json-iterator/go"
)

// apiError is the server's error body
type apiError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *apiError) Error() string {
	switch {
	case e.Message == "":
		return fmt.Sprintf("API error: status %d", e.StatusCode)
	case e.Code == "":
		return fmt.Sprintf("API error [%d]: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error [%d] %s: %s", e.StatusCode, e.Code, e.Message)
}

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiURL).
		SetTimeout(15*time.Second).
		SetAuthToken(authToken).
		SetHeader("User-Agent", "corgi-cli/0.1.0")
}

// call sends an authenticated request and decodes the JSON response into out.
// The raw body is returned for --output json.
func call(method, path string, payload interface{}, out interface{}) ([]byte, error) {
	req := newClient().R()
	if payload != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(payload)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	if resp.IsError() {
		return nil, parseError(resp)
	}

	raw := resp.Body()
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return raw, nil
}

func parseError(resp *resty.Response) error {
	apiErr := &apiError{StatusCode: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), apiErr); err != nil {
		apiErr.Code, apiErr.Message = "", ""
	}
	return apiErr
}
