package rcon

import (
	"fmt"
	"regexp"
	"strings"
)

// Player is one entry parsed from the server's player listing.
type Player struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Kick removes a player from the server, with an optional reason.
func (c *Client) Kick(playerID, reason string) (string, error) {
	cmd := fmt.Sprintf("kick %s", playerID)
	if reason != "" {
		cmd += " " + reason
	}
	return c.SendCommand(cmd)
}

// Ban bans a player, with an optional reason.
func (c *Client) Ban(playerID, reason string) (string, error) {
	cmd := fmt.Sprintf("ban %s", playerID)
	if reason != "" {
		cmd += " " + reason
	}
	return c.SendCommand(cmd)
}

// Say broadcasts a message to all players.
func (c *Client) Say(message string) (string, error) {
	return c.SendCommand(fmt.Sprintf("say -1 %s", message))
}

// Shutdown asks the server to shut itself down.
func (c *Client) Shutdown() (string, error) {
	return c.SendCommand("#shutdown")
}

// Restart asks the server to restart the current mission.
func (c *Client) Restart() (string, error) {
	return c.SendCommand("#restart")
}

// Players requests the player listing and parses it into structured entries.
func (c *Client) Players() ([]Player, error) {
	resp, err := c.SendCommand("players")
	if err != nil {
		return nil, err
	}
	return ParsePlayers(resp), nil
}

var playerIDPattern = regexp.MustCompile(`(?i)\bid[=:]?\s*(\d+)`)

// ParsePlayers extracts {name, id} tuples from a player-list response using
// a best-effort line-oriented heuristic: blank lines and header/separator
// lines are skipped, the id comes from a labeled numeric field and the name
// is the text before any parenthetical.
func ParsePlayers(text string) []Player {
	var players []Player
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") ||
			strings.HasPrefix(line, "(") || strings.HasPrefix(line, "Players") {
			continue
		}
		m := playerIDPattern.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		id := line[m[2]:m[3]]
		name := line[:m[0]]
		if i := strings.Index(name, "("); i >= 0 {
			name = name[:i]
		}
		name = strings.TrimSpace(strings.Trim(strings.TrimSpace(name), ":-"))
		if name == "" {
			// Some listings put the id first and the name after it.
			rest := strings.TrimSpace(line[m[1]:])
			if i := strings.Index(rest, "("); i >= 0 {
				rest = rest[:i]
			}
			name = strings.TrimSpace(rest)
		}
		if name == "" {
			continue
		}
		players = append(players, Player{Name: name, ID: id})
	}
	return players
}
