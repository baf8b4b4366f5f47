package onboarding

import "memberflow/shared/models"

// Phase is one step of the login conversation. Each phase carries only
// what was collected so far.
type Phase interface {
	Name() string
}

type AwaitingAPIID struct{}

type AwaitingAPIHash struct {
	APIID int
}

type AwaitingPhone struct {
	APIID   int
	APIHash string
}

type AwaitingCode struct {
	APIID    int
	APIHash  string
	Phone    string
	CodeHash string
	conn     models.Conn
}

type AwaitingPassword struct {
	APIID   int
	APIHash string
	Phone   string
	conn    models.Conn
}

func (AwaitingAPIID) Name() string    { return "awaiting_api_id" }
func (AwaitingAPIHash) Name() string  { return "awaiting_api_hash" }
func (AwaitingPhone) Name() string    { return "awaiting_phone" }
func (AwaitingCode) Name() string     { return "awaiting_code" }
func (AwaitingPassword) Name() string { return "awaiting_password" }

// liveConn returns the open connection held by p, if any.
func liveConn(p Phase) models.Conn {
	switch p := p.(type) {
	case AwaitingCode:
		return p.conn
	case AwaitingPassword:
		return p.conn
	}
	return nil
}
