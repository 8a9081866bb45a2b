package protocol

// HandshakeRequest is the first message a client sends on a new connection.
// Code is compared as-is; only Name carries shape rules.
type HandshakeRequest struct {
	Name string `json:"name" validate:"required,max=32"`
	Code string `json:"code"`
}

// Status is the outcome of a handshake.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed" // wrong room code or unusable name
	StatusFull    Status = "full"   // room at capacity or already playing
)

// HandshakeResponse is the server's answer to a HandshakeRequest.
type HandshakeResponse struct {
	Status Status     `json:"status"`
	Roster []UserInfo `json:"roster,omitempty"` // set on StatusSuccess, includes the new entrant
}

// Success returns a successful handshake response carrying roster.
func Success(roster []UserInfo) HandshakeResponse {
	return HandshakeResponse{Status: StatusSuccess, Roster: roster}
}

// Failed returns a wrong-code handshake response.
func Failed() HandshakeResponse {
	return HandshakeResponse{Status: StatusFailed}
}

// Full returns a room-full handshake response.
func Full() HandshakeResponse {
	return HandshakeResponse{Status: StatusFull}
}
