package models

import (
	"time"
)

// Member represents one connection's participation in a room. It is keyed
// by connection ID, not by username: a user who reconnects gets a fresh
// member record with a fresh ID.
type Member struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	HasVoted    bool   `json:"has_voted"`
	VotedOption string `json:"voted_option,omitempty"`
}

// RoomSnapshot is the read-only projection of a room sent to clients.
// Votes is index-aligned with Options; Members is ordered by join time.
type RoomSnapshot struct {
	RoomCode      string    `json:"room_code"`
	Question      string    `json:"question"`
	Options       []string  `json:"options"`
	Votes         []int     `json:"votes"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	TimeRemaining int       `json:"time_remaining"`
	IsActive      bool      `json:"is_active"`
	Members       []Member  `json:"members"`
}
