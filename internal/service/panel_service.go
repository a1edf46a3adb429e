package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MushhX/RavixPteroX/internal/config"
)

// ErrUpstream covers every failure talking to the game panel; detail stays in
// the logs, the client only ever sees a generic upstream error.
var ErrUpstream = errors.New("panel upstream error")

var powerSignals = map[string]struct{}{
	"start":   {},
	"stop":    {},
	"restart": {},
	"kill":    {},
}

func ValidPowerSignal(signal string) bool {
	_, ok := powerSignals[signal]
	return ok
}

// PanelService forwards authenticated dashboard calls to the game-server
// panel using the service credential. In demo mode it serves fixed stub data
// so the dashboard works without a panel deployment.
type PanelService struct {
	cfg    config.PanelConfig
	demo   bool
	client *http.Client
	log    zerolog.Logger
}

func NewPanelService(cfg config.PanelConfig, demo bool, log zerolog.Logger) *PanelService {
	return &PanelService{
		cfg:    cfg,
		demo:   demo,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

func (s *PanelService) ListServers(ctx context.Context) (json.RawMessage, error) {
	if s.demo {
		return demoServers, nil
	}
	return s.do(ctx, http.MethodGet, "/api/client", nil)
}

func (s *PanelService) Power(ctx context.Context, serverID, signal string) error {
	if !ValidPowerSignal(signal) {
		return fmt.Errorf("invalid power signal %q", signal)
	}
	if s.demo {
		return nil
	}

	path := fmt.Sprintf("/api/client/servers/%s/power", serverID)
	_, err := s.do(ctx, http.MethodPost, path, map[string]string{"signal": signal})
	return err
}

func (s *PanelService) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(payload)
	}

	url := strings.TrimSuffix(s.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.ClientAPIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("panel request failed")
		return nil, ErrUpstream
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("panel response read failed")
		return nil, ErrUpstream
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.log.Error().Int("status", resp.StatusCode).Str("path", path).Msg("panel returned error")
		return nil, ErrUpstream
	}

	return payload, nil
}

var demoServers = json.RawMessage(`{
  "data": [
    {
      "object": "server",
      "attributes": {
        "identifier": "demo-1",
        "name": "Survival SMP",
        "description": "Minecraft 1.20 - Survival",
        "node": "eu-1",
        "status": {"state": "running", "uptimeSec": 86400},
        "limits": {"cpu": 200, "memoryMiB": 4096, "diskMiB": 20480},
        "usage": {"cpuPercent": 42, "memoryMiB": 2310, "diskMiB": 12800}
      }
    },
    {
      "object": "server",
      "attributes": {
        "identifier": "demo-2",
        "name": "Node API",
        "description": "Production API - Node 20",
        "node": "eu-2",
        "status": {"state": "stopped", "uptimeSec": 0},
        "limits": {"cpu": 100, "memoryMiB": 2048, "diskMiB": 10240},
        "usage": {"cpuPercent": 0, "memoryMiB": 0, "diskMiB": 4900}
      }
    }
  ]
}`)
