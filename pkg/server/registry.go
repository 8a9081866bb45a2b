package server

import (
	"errors"
	"slices"
	"sync"

	"github.com/NicolasHaas/gotable/pkg/model"
	"github.com/NicolasHaas/gotable/pkg/protocol"
)

var (
	ErrRoomFull    = errors.New("server: room is full")
	ErrRoomSealed  = errors.New("server: room no longer admits players")
	ErrDuplicateIP = errors.New("server: ip already registered")
)

// Registry is the ordered roster of connected users.
// Writers hold the lock only for the structural change; callbacks and
// network sends always run after it is released.
type Registry struct {
	mu     sync.RWMutex
	users  []*model.User // join order
	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Admit appends u if the room is open, below capacity and has no live entry
// with the same ip. It returns the users
// that were already present and the roster including u, both taken under the
// same lock as the insertion.
func (r *Registry) Admit(u *model.User, capacity int) (peers []*model.User, roster []protocol.UserInfo, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.sealed:
		return nil, nil, ErrRoomSealed
	case len(r.users) >= capacity:
		return nil, nil, ErrRoomFull
	case r.indexLocked(u.IP) >= 0:
		return nil, nil, ErrDuplicateIP
	}
	peers = slices.Clone(r.users)
	r.users = append(r.users, u)
	return peers, r.snapshotLocked(), nil
}

// Seal stops further admissions.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Remove deletes the user with ip. Only the first caller for a given entry gets ok == true.
func (r *Registry) Remove(ip string) (*model.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(ip)
	if i < 0 {
		return nil, false
	}
	u := r.users[i]
	r.users = slices.Delete(r.users, i, i+1)
	return u, true
}

// Get looks up a user by ip.
func (r *Registry) Get(ip string) (*model.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexLocked(ip); i >= 0 {
		return r.users[i], true
	}
	return nil, false
}

// Snapshot returns the public roster in join order.
func (r *Registry) Snapshot() []protocol.UserInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Users returns the live users in join order (snapshot).
func (r *Registry) Users() []*model.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.users)
}

// ForEachOther calls fn for every user except the one with excludeIP.
// fn runs outside the lock, against a snapshot.
func (r *Registry) ForEachOther(excludeIP string, fn func(*model.User)) {
	for _, u := range r.Users() {
		if u.IP != excludeIP {
			fn(u)
		}
	}
}

// Len returns the number of live users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Clear removes every user and returns them.
func (r *Registry) Clear() []*model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := r.users
	r.users = nil
	return users
}

func (r *Registry) indexLocked(ip string) int {
	return slices.IndexFunc(r.users, func(u *model.User) bool { return u.IP == ip })
}

func (r *Registry) snapshotLocked() []protocol.UserInfo {
	roster := make([]protocol.UserInfo, 0, len(r.users))
	for _, u := range r.users {
		roster = append(roster, u.Info())
	}
	return roster
}
