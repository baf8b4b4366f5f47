package models

// AccountStatus values are informational; the Health Monitor prunes rather than marks.
const (
	AccountActive = "active"
)

type Account struct {
	ContributorID int64  `json:"contributor_id"`
	APIID         int    `json:"api_id"`
	APIHash       string `json:"api_hash"`
	Session       string `json:"session_string"`
	Status        string `json:"status,omitempty"`
}

// Credential returns what the protocol client needs to connect as this account.
func (a Account) Credential() Credential {
	return Credential{
		APIID:   a.APIID,
		APIHash: a.APIHash,
		Session: a.Session,
	}
}
