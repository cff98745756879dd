package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// FetchLanes queries a running monitor's /lanes endpoint
func FetchLanes(ctx context.Context, addr string, n int) (*LanesResponse, error) {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := fmt.Sprintf("%s/lanes?n=%d", strings.TrimSuffix(base, "/"), n)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach monitor at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("monitor returned %s", resp.Status)
	}

	var lanesResp LanesResponse
	if err := json.NewDecoder(resp.Body).Decode(&lanesResp); err != nil {
		return nil, fmt.Errorf("failed to decode lanes response: %w", err)
	}
	return &lanesResp, nil
}
