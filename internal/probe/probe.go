// Package probe polls the game server's own status endpoints. It is a
// best-effort read-only path: every failure degrades to a fixed offline
// result so a down game server never breaks the community site.
package probe

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// StatusResult is the live server status shown on the community dashboard.
type StatusResult struct {
	Online     bool   `json:"online"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	ServerName string `json:"serverName"`
	Uptime     string `json:"uptime"`
}

// Position is a placeholder until a richer position feed is wired in.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Player is one entry from the server's player list endpoint.
type Player struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Position Position `json:"position"`
}

// upstream wire shapes

type upstreamPlayer struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type upstreamInfo struct {
	Vars map[string]string `json:"vars"`
}

// Probe reads the game server's players.json and info.json endpoints.
type Probe struct {
	baseURL      string
	httpClient   *http.Client
	fallbackName string
	fallbackMax  int

	mu          sync.Mutex
	onlineSince time.Time
}

// New creates a probe against host:port with the given request timeout.
// fallbackName and fallbackMax fill the offline result.
func New(host, port string, timeout time.Duration, fallbackName string, fallbackMax int) *Probe {
	return &Probe{
		baseURL:      fmt.Sprintf("http://%s:%s", host, port),
		httpClient:   &http.Client{Timeout: timeout},
		fallbackName: fallbackName,
		fallbackMax:  fallbackMax,
	}
}

// offline is the fixed result returned on any probe failure.
func (p *Probe) offline() StatusResult {
	p.mu.Lock()
	p.onlineSince = time.Time{}
	p.mu.Unlock()

	return StatusResult{
		Online:     false,
		Players:    0,
		MaxPlayers: p.fallbackMax,
		ServerName: p.fallbackName,
		Uptime:     "offline",
	}
}

// Status performs the two upstream reads and reports online state, player
// count and capacity. It never returns an error; failures yield the
// offline result within the configured timeout.
func (p *Probe) Status() StatusResult {
	var players []upstreamPlayer
	if err := p.getJSON("/players.json", &players); err != nil {
		return p.offline()
	}

	var info upstreamInfo
	if err := p.getJSON("/info.json", &info); err != nil {
		return p.offline()
	}

	maxPlayers := p.fallbackMax
	if v, ok := info.Vars["sv_maxClients"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			maxPlayers = n
		}
	}
	name := p.fallbackName
	if v, ok := info.Vars["sv_projectName"]; ok && v != "" {
		name = v
	}

	p.mu.Lock()
	if p.onlineSince.IsZero() {
		p.onlineSince = time.Now()
	}
	uptime := time.Since(p.onlineSince).Round(time.Second).String()
	p.mu.Unlock()

	return StatusResult{
		Online:     true,
		Players:    len(players),
		MaxPlayers: maxPlayers,
		ServerName: name,
		Uptime:     uptime,
	}
}

// PlayerList reads the player list endpoint. Positions are zeroed; the
// authoritative position feed arrives through the push path instead.
// Returns an empty list on any failure.
func (p *Probe) PlayerList() []Player {
	var upstream []upstreamPlayer
	if err := p.getJSON("/players.json", &upstream); err != nil {
		return []Player{}
	}

	players := make([]Player, 0, len(upstream))
	for _, u := range upstream {
		players = append(players, Player{ID: u.ID, Name: u.Name})
	}
	return players
}

func (p *Probe) getJSON(path string, out any) error {
	resp, err := p.httpClient.Get(p.baseURL + path)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("probe response unparseable: %w", err)
	}
	return nil
}
