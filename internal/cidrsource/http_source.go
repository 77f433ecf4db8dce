package cidrsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxDocumentSize = 4 << 20

var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// HTTPSource fetches a ranges document with a GET request.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSource) Load(ctx context.Context) ([]string, error) {
	client := s.Client
	if client == nil {
		client = defaultHTTPClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("cidrsource: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to load CIDR ranges from %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("failed to load CIDR ranges from %s: unexpected status %d: %s",
			s.URL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read CIDR ranges from %s: %w", s.URL, err)
	}
	return ParseDocument(data)
}
