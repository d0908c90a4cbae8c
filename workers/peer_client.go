package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// PeerLinksPath is where a device listens for links handed over the LAN.
const PeerLinksPath = "/peer/links"

// PeerLink is the body exchanged between devices.
type PeerLink struct {
	Link string `json:"link"`
	From string `json:"from,omitempty"`
}

// PeerClient hands links to another device's intake. Discovery of addr is
// left to the caller.
type PeerClient struct {
	HTTPClient *http.Client
	Log        *zap.Logger
}

func NewPeerClient(httpClient *http.Client, log *zap.Logger) *PeerClient {
	return &PeerClient{HTTPClient: httpClient, Log: log}
}

// peerURL accepts "host:port" or a full base URL.
func peerURL(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("peer address is empty")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("failed to parse peer address: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("peer address %q has no host", addr)
	}
	return u.JoinPath(PeerLinksPath).String(), nil
}

func (c *PeerClient) SendLink(ctx context.Context, addr, from, link string) error {
	target, err := peerURL(addr)
	if err != nil {
		return err
	}
	body, err := json.Marshal(PeerLink{Link: link, From: from})
	if err != nil {
		return fmt.Errorf("failed to encode peer link: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach peer %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("peer %s returned status %d: %s", addr, resp.StatusCode, string(msg))
	}

	c.Log.Info("📨 [PEER] link handed over", zap.String("peer", addr))
	return nil
}
