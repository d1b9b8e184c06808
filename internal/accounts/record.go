package accounts

import "time"

// Record is a stored cloudflare credential. Token is the account's API token
// and must never leave the process through an API response.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary is the public view of a Record.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r Record) Summary() Summary {
	return Summary{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
	}
}
