package models

import "time"

// Account is a registered user of the leaderboard service.
type Account struct {
	Username  string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatRecord is the normalized solved-problem summary for one LeetCode user.
// When Failed is set every count is zero.
type StatRecord struct {
	Username    string `json:"username"`
	TotalSolved int    `json:"totalSolved"`
	Easy        int    `json:"easy"`
	Medium      int    `json:"medium"`
	Hard        int    `json:"hard"`
	Failed      bool   `json:"failed"`
}

// DegradedStatRecord is the record reported for a user whose lookup failed.
func DegradedStatRecord(username string) StatRecord {
	return StatRecord{Username: username, Failed: true}
}

// SessionToken is the bearer credential handed to a client after signup or login.
type SessionToken struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}
