package illustration

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyteller/pkg/errs"
	"storyteller/pkg/prompts"
	"storyteller/pkg/schema"
	"storyteller/pkg/utils"
)

// Backend turns an image directive into an encoded raster (PNG or JPEG).
type Backend interface {
	Generate(ctx context.Context, directive string) ([]byte, error)
}

// Disabled is used when no image credential is available.
type Disabled struct{}

func (Disabled) Generate(context.Context, string) ([]byte, error) {
	return nil, errs.NotConfigured("illustration")
}

const maxErrorBody = 4 << 10

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Minute}
}

// postJSON sends payload and returns the body of a 2xx answer.
// Anything else becomes an UpstreamRejected error carrying the status and body.
func postJSON(ctx context.Context, client *http.Client, url string, payload any, header http.Header) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errs.Rejected(0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Rejected(resp.StatusCode, "", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw := utils.LimitStr(string(body), maxErrorBody)
		return nil, errs.Rejected(resp.StatusCode, raw, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
	return body, nil
}

func decodeBase64(raw, payload string) ([]byte, error) {
	img, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, errs.Malformed(raw, fmt.Errorf("failed to decode image: %w", err))
	}
	if len(img) == 0 {
		return nil, errs.Malformed(raw, errors.New("empty image payload"))
	}
	return img, nil
}

// Stability calls the Stability AI v1 text-to-image endpoint.
type Stability struct {
	URL    string
	APIKey string
	Client *http.Client
}

func NewStability(url, apiKey string) *Stability {
	return &Stability{URL: url, APIKey: apiKey, Client: newHTTPClient()}
}

func (s *Stability) Generate(ctx context.Context, directive string) ([]byte, error) {
	if s.APIKey == "" {
		return nil, errs.NotConfigured("illustration")
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.APIKey)
	body, err := postJSON(ctx, s.Client, s.URL, schema.DefaultStabilityRequest(prompts.ImageDirective(directive)), header)
	if err != nil {
		return nil, err
	}

	var resp schema.StabilityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errs.Malformed(utils.LimitStr(string(body), maxErrorBody), fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if len(resp.Artifacts) == 0 || resp.Artifacts[0].Base64 == "" {
		return nil, errs.Malformed(utils.LimitStr(string(body), maxErrorBody), errors.New("no artifacts in response"))
	}
	return decodeBase64(utils.LimitStr(string(body), maxErrorBody), resp.Artifacts[0].Base64)
}

// SDWebUI calls a self-hosted Stable Diffusion WebUI.
type SDWebUI struct {
	URL    string
	Client *http.Client
}

func NewSDWebUI(url string) *SDWebUI {
	return &SDWebUI{URL: strings.TrimSuffix(url, "/"), Client: newHTTPClient()}
}

func (s *SDWebUI) Generate(ctx context.Context, directive string) ([]byte, error) {
	if s.URL == "" {
		return nil, errs.NotConfigured("illustration")
	}

	body, err := postJSON(ctx, s.Client, s.URL+"/sdapi/v1/txt2img", schema.DefaultSDWebUIRequest(prompts.ImageDirective(directive)), nil)
	if err != nil {
		return nil, err
	}

	var resp schema.SDWebUIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errs.Malformed(utils.LimitStr(string(body), maxErrorBody), fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if resp.Error != "" {
		return nil, errs.Rejected(http.StatusOK, resp.Error, errors.New("sd-webui reported an error"))
	}
	if len(resp.Images) == 0 {
		return nil, errs.Malformed(utils.LimitStr(string(body), maxErrorBody), errors.New("no images generated"))
	}
	return decodeBase64(utils.LimitStr(string(body), maxErrorBody), resp.Images[0])
}
