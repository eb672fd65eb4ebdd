package domain

import "time"

// Credentials authorize metric reads for one influencer's platform account.
type Credentials struct {
	AccessToken string
	AccountID   string
}

func (c Credentials) Valid() bool {
	return c.AccessToken != "" && c.AccountID != ""
}

// LinkedAccount stores an influencer's platform account; the token is kept
// encrypted.
type LinkedAccount struct {
	InfluencerID   string    `json:"influencer_id"`
	Platform       string    `json:"platform"`
	AccountID      string    `json:"account_id"`
	Username       string    `json:"username,omitempty"`
	TokenEncrypted []byte    `json:"-"`
	LinkedAt       time.Time `json:"linked_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const PlatformInstagram = "instagram"
