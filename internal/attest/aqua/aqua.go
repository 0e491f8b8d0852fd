// Package aqua provides a client for the Aqua notarization provider.
// Documents are submitted as named content blobs; the provider responds
// with a genesis revision whose tree carries the anchor hash.
package aqua

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethsafari/opshub-go/internal/httpclient"
)

var (
	ErrProviderStatus = errors.New("anchoring provider returned error status")
	ErrRejected       = errors.New("anchoring provider rejected document")
	ErrNoHash         = errors.New("anchoring provider returned no hash")
)

// Client submits documents to an Aqua-compatible anchoring provider.
type Client struct {
	http    *httpclient.Client
	baseURL string
	token   string
}

// New creates a client for the provider at baseURL. The token is sent as a
// bearer credential on every request.
func New(hc *httpclient.Client, baseURL, token string) *Client {
	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type genesisRequest struct {
	FileName    string `json:"fileName"`
	FileContent string `json:"fileContent"`
	Path        string `json:"path,omitempty"`
}

type genesisResult struct {
	Tag  string `json:"tag"`
	Data struct {
		AquaTree struct {
			Tree struct {
				Hash string `json:"hash"`
			} `json:"tree"`
			TreeMapping struct {
				LatestHash string `json:"latestHash"`
			} `json:"treeMapping"`
		} `json:"aquaTree"`
	} `json:"data"`
}

// Anchor submits the named document and returns the anchor hash.
// The tree hash takes priority over the latest-mapping hash.
func (c *Client) Anchor(ctx context.Context, fileName string, content []byte, path string) (string, error) {
	reqBody, err := json.Marshal(genesisRequest{
		FileName:    fileName,
		FileContent: string(content),
		Path:        path,
	})
	if err != nil {
		return "", err
	}

	body, resp, err := c.http.PostJSON(ctx, c.baseURL+"/attest", reqBody, c.token)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %d", ErrProviderStatus, resp.StatusCode)
	}

	var result genesisResult
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode provider response: %w", err)
	}

	if result.Tag != "ok" {
		return "", fmt.Errorf("%w: tag %q", ErrRejected, result.Tag)
	}

	if h := result.Data.AquaTree.Tree.Hash; h != "" {
		return h, nil
	}
	if h := result.Data.AquaTree.TreeMapping.LatestHash; h != "" {
		return h, nil
	}
	return "", ErrNoHash
}

// Health checks the provider's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	body, resp, err := c.http.GetJSON(ctx, c.baseURL+"/health")
	if err != nil {
		return err
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("%w: %d", ErrProviderStatus, resp.StatusCode)
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("%w: status %q", ErrProviderStatus, health.Status)
	}
	return nil
}
