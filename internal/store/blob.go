package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Blob talks to a hosted blob API: a head lookup resolves the key to a public
// content URL, the content is fetched from that URL, and writes PUT the key
// with overwrite and public access.
type Blob struct {
	baseURL string
	token   string
	client  *http.Client
}

type blobHeadResponse struct {
	URL      string `json:"url"`
	Pathname string `json:"pathname"`
}

// NewBlob returns a blob store rooted at baseURL. A nil client means http.DefaultClient.
func NewBlob(baseURL, token string, client *http.Client) *Blob {
	if client == nil {
		client = http.DefaultClient
	}
	return &Blob{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

func (b *Blob) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	return req, nil
}

func (b *Blob) head(ctx context.Context, key string) (blobHeadResponse, bool, error) {
	req, err := b.newRequest(ctx, http.MethodGet, b.baseURL+"/?url="+url.QueryEscape(key), nil)
	if err != nil {
		return blobHeadResponse{}, false, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return blobHeadResponse{}, false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return blobHeadResponse{}, false, nil
	case resp.StatusCode != http.StatusOK:
		return blobHeadResponse{}, false, fmt.Errorf("blob head returned %s", resp.Status)
	}

	var info blobHeadResponse
	if err = json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return blobHeadResponse{}, false, fmt.Errorf("failed to decode blob head: %w", err)
	}
	if info.URL == "" {
		return blobHeadResponse{}, false, nil
	}
	return info, true, nil
}

func (b *Blob) Get(ctx context.Context, key string) (string, bool, error) {
	info, ok, err := b.head(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}

	// The content URL is public, no token needed.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("blob fetch returned %s", resp.Status)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, err
	}
	return string(content), true, nil
}

func (b *Blob) Set(ctx context.Context, key, value string) error {
	req, err := b.newRequest(ctx, http.MethodPut, b.baseURL+"/"+url.PathEscape(key), strings.NewReader(value))
	if err != nil {
		return err
	}
	req.Header.Set("x-access", "public")
	req.Header.Set("x-add-random-suffix", "0")
	req.Header.Set("x-allow-overwrite", "1")
	req.Header.Set("x-content-type", "text/plain")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("blob put returned %s", resp.Status)
	}
	return nil
}

func (b *Blob) Close() error {
	return nil
}
