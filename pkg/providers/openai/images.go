package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rakhadjo/svara/pkg/resilience"
)

// ImageClient calls the images generation endpoint.
type ImageClient struct {
	APIKey  string
	Model   string
	Size    string
	BaseURL string
	Client  *http.Client
}

// GeneratedImage is one rendered image, either hosted or inline base64.
type GeneratedImage struct {
	URL     string
	B64JSON string
}

func NewImageClient(apiKey, model string) *ImageClient {
	return &ImageClient{
		APIKey:  apiKey,
		Model:   model,
		Size:    "1024x1024",
		BaseURL: "https://api.openai.com/v1",
		Client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *ImageClient) Name() string { return "openai_images" }

func (c *ImageClient) Generate(ctx context.Context, prompt string) (GeneratedImage, error) {
	if prompt == "" {
		return GeneratedImage{}, errors.New("empty prompt")
	}
	payload := map[string]any{
		"model":  c.Model,
		"prompt": prompt,
		"n":      1,
		"size":   c.Size,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return GeneratedImage{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/images/generations", bytes.NewBuffer(b))
	if err != nil {
		return GeneratedImage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.client().Do(req)
	if err != nil {
		return GeneratedImage{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return GeneratedImage{}, resilience.RateLimitError{Provider: "openai_images", Message: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return GeneratedImage{}, errors.New(string(body))
	}
	var out struct {
		Data []struct {
			URL     string `json:"url"`
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return GeneratedImage{}, err
	}
	if len(out.Data) == 0 {
		return GeneratedImage{}, errors.New("no image data")
	}
	return GeneratedImage{URL: out.Data[0].URL, B64JSON: out.Data[0].B64JSON}, nil
}

func (c *ImageClient) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}
