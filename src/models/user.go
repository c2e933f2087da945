package models

import "time"

// Lead is a waitlist signup, recorded before an account exists.
type Lead struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Status    string    `json:"status"` // new / contacted / converted
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Password         string    `json:"-"`
	AuthProvider     string    `json:"auth_provider"` // local / github
	GitHubID         int64     `json:"github_id,omitempty"`
	GitHubUsername   string    `json:"github_username,omitempty"`
	Broker           string    `json:"broker"`    // degiro / ibkr / other
	Situation        string    `json:"situation"` // particulier / startup_employee / dga
	VermogenEstimate int64     `json:"vermogen_estimate"`
	Onboarded        bool      `json:"onboarded"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Session struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	UserAgent    string    `json:"user_agent"`
	ClientIP     string    `json:"client_ip"`
	IsBlocked    bool      `json:"is_blocked"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Company is the beleggings-BV that owns transactions, holdings, reports and
// filings. One per user in this domain.
type Company struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	KvKNumber string    `json:"kvk_number"`
	Status    string    `json:"status"` // pending / active / inactive
	FoundedAt time.Time `json:"founded_at"`
}
