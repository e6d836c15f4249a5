// Package api is the HTTP client of a trafficsim server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/citygrid/trafficsim/pkg/core"
)

// StatusError is returned for any response other than 200.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Path, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Path, e.Code, e.Body)
}

// Cell is the tag of one grid cell.
type Cell struct {
	X   int      `json:"x"`
	Y   int      `json:"y"`
	Tag core.Tag `json:"tag"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck fails unless the server answers 200.
func (c *Client) Healthcheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthcheck", nil)
}

// Positions advances the simulation by one tick while it is running and
// returns every vehicle position, indexed by vehicle id - 1.
func (c *Client) Positions(ctx context.Context) ([]core.Coord, error) {
	var out []core.Coord
	err := c.do(ctx, http.MethodPost, "/positions", &out)
	return out, err
}

// Status returns the run totals without stepping.
func (c *Client) Status(ctx context.Context) (core.RunSummary, error) {
	var out core.RunSummary
	err := c.do(ctx, http.MethodGet, "/status", &out)
	return out, err
}

// Vehicles returns the current state of every vehicle.
func (c *Client) Vehicles(ctx context.Context) ([]core.VehicleSnapshot, error) {
	var out []core.VehicleSnapshot
	err := c.do(ctx, http.MethodGet, "/vehicles", &out)
	return out, err
}

// Cell returns the tag at p.
func (c *Client) Cell(ctx context.Context, p core.Coord) (Cell, error) {
	var out Cell
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/cells/%d,%d", p.X, p.Y), &out)
	return out, err
}

// do sends a bodiless request and decodes a JSON reply into out, if given.
func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
