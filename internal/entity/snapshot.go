package entity

import "time"

const (
	RoleHost   = "host"
	RoleRemote = "remote"
)

// MatchSnapshot is a read-only copy of one side's view of the match, served over HTTP and stored in redis.
type MatchSnapshot struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Phase      string    `json:"phase"`
	HostName   string    `json:"host_name,omitempty"`
	RemoteName string    `json:"remote_name,omitempty"`
	GridSize   int       `json:"grid_size"`
	Board      []string  `json:"board,omitempty"`
	Turn       string    `json:"turn,omitempty"`
	Over       bool      `json:"over"`
	Result     string    `json:"result,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}
