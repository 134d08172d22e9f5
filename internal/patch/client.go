// Package patch talks to the remote patch service and applies its
// instructions to a game installation, keeping a backup trail so every
// change can be reversed after the game exits.
package patch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hollowgate/launcherd/internal/domain"
)

const fetchTimeout = 30 * time.Second

// Client fetches patch instructions and patch files over HTTP.
type Client struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient creates a patch client against the given service base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		client:  &http.Client{Timeout: fetchTimeout},
		baseURL: baseURL,
		logger:  logger,
	}
}

// FetchInstruction performs the patch lookup for one installed build.
// A 404 becomes a *NotFoundError carrying the full lookup context; any
// other non-success status or decode failure is a generic fetch error.
func (c *Client) FetchInstruction(ctx context.Context, game domain.GameID, version string, channel domain.ChannelID, exeHash string) (*domain.PatchInstruction, error) {
	url := fmt.Sprintf("%s/game/patch/%d/%s/%d/%s.json", c.baseURL, game, version, channel, exeHash)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build patch request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "launcherd")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch patch instruction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{
			GameID:     game,
			Version:    version,
			Channel:    channel,
			MD5:        exeHash,
			URL:        url,
			StatusCode: resp.StatusCode,
			ErrorType:  ErrorTypeNotFound,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("patch service returned status %d for %s", resp.StatusCode, url)
	}

	var instruction domain.PatchInstruction
	if err := json.NewDecoder(resp.Body).Decode(&instruction); err != nil {
		return nil, fmt.Errorf("parse patch instruction: %w", err)
	}

	c.logger.Debug("fetched patch instruction",
		zap.Int("game", int(game)),
		zap.String("version", version),
		zap.Uint("method", instruction.Method),
		zap.Bool("patch", instruction.Patch),
		zap.Bool("proxy", instruction.Proxy))

	return &instruction, nil
}

// Download fetches a patch file into dst, reporting progress through the
// optional tracker. The caller verifies the content hash afterwards; no
// bytes are trusted before that check passes.
func (c *Client) Download(ctx context.Context, file domain.PatchFile, dst string, progress *Tracker) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("User-Agent", "launcherd")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", file.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download %s: status %d", file.URL, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer out.Close()

	var reader io.Reader = resp.Body
	if progress != nil {
		progress.Begin(file.Location, resp.ContentLength)
		reader = progress.Reader(file.Location, resp.Body)
		defer progress.End(file.Location)
	}

	if _, err := io.Copy(out, reader); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}

	return out.Sync()
}
