// Package model defines the core domain types for a table session.
package model

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/NicolasHaas/gotable/pkg/protocol"
)

const MaxNameLength = 32

var ErrNameEmpty = errors.New("name must not be empty")
var ErrNameTooLong = fmt.Errorf("name must not exceed %d characters", MaxNameLength)
var ErrNameInvalidChars = errors.New("name must not contain control characters")

// ValidateName checks that a display name is 1-32 characters with no control
// characters. Names are labels only and need not be unique.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrNameTooLong
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return ErrNameInvalidChars
		}
	}
	return nil
}

// User is one admitted client. IP is the identity key within a session.
type User struct {
	IP   string
	Name string

	// Outbound carries messages other components push toward this client.
	// Only the user's relay actor receives from it; it is never closed.
	Outbound chan protocol.Message
	// Inbound carries messages the relay actor received from the client
	// that are meant for game logic.
	Inbound chan protocol.Message

	done     chan struct{}
	doneOnce sync.Once
}

// NewUser creates a user with bounded outbound and inbound queues.
func NewUser(ip, name string, queueSize int) *User {
	return &User{
		IP:       ip,
		Name:     name,
		Outbound: make(chan protocol.Message, queueSize),
		Inbound:  make(chan protocol.Message, queueSize),
		done:     make(chan struct{}),
	}
}

// Info returns the public view of u.
func (u *User) Info() protocol.UserInfo {
	return protocol.UserInfo{Name: u.Name, IP: u.IP}
}

// Offer queues msg for the client without blocking.
// It reports false when the queue is full or the user has been released.
func (u *User) Offer(msg protocol.Message) bool {
	select {
	case <-u.done:
		return false
	default:
	}
	select {
	case u.Outbound <- msg:
		return true
	default:
		return false
	}
}

// SendTimeout queues msg for the client, waiting at most d for room in the queue.
func (u *User) SendTimeout(msg protocol.Message, d time.Duration) bool {
	select {
	case <-u.done:
		return false
	default:
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case u.Outbound <- msg:
		return true
	case <-u.done:
		return false
	case <-timer.C:
		return false
	}
}

// Forward queues msg for game logic without blocking.
func (u *User) Forward(msg protocol.Message) bool {
	select {
	case u.Inbound <- msg:
		return true
	default:
		return false
	}
}

// Release marks u as gone. Later Offer/SendTimeout calls fail fast. Safe to call more than once.
func (u *User) Release() {
	u.doneOnce.Do(func() { close(u.done) })
}

// Done is closed once u has been released.
func (u *User) Done() <-chan struct{} {
	return u.done
}
