// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// NewHTTPClient is the client used for LAN hand-offs. Peers are on the local
// network, so the timeout is short.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
