package protocol

import "fmt"

// Kind identifies a steady-state message.
type Kind string

const (
	KindKick   Kind = "kick"    // roster update: IP left or was kicked
	KindStart  Kind = "start"   // game start
	KindClose  Kind = "close"   // client leaving, or server closing the relay
	KindJoin   Kind = "join"    // roster update: User joined
	KindBeKick Kind = "be_kick" // sent only to the target of a kick
	KindOver   Kind = "over"    // game over
	KindRaise  Kind = "raise"
	KindCall   Kind = "call"
	KindFold   Kind = "fold"
	KindCheck  Kind = "check"
	KindReset  Kind = "reset"
)

// Valid reports whether k is a known message kind.
func (k Kind) Valid() bool {
	switch k {
	case KindKick, KindStart, KindClose, KindJoin, KindBeKick, KindOver,
		KindRaise, KindCall, KindFold, KindCheck, KindReset:
		return true
	default:
		return false
	}
}

// IsAction reports whether k is a gameplay action that gets relayed to all other players.
func (k Kind) IsAction() bool {
	switch k {
	case KindRaise, KindCall, KindFold, KindCheck:
		return true
	default:
		return false
	}
}

// UserInfo is the public view of a connected user.
type UserInfo struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
}

// Message is one steady-state protocol message.
// Only the payload field matching Kind is set.
type Message struct {
	Kind   Kind      `json:"type"`
	IP     string    `json:"ip,omitempty"`     // KindKick
	User   *UserInfo `json:"user,omitempty"`   // KindJoin
	Amount uint64    `json:"amount,omitempty"` // KindRaise
}

// New returns a payload-less message of the given kind.
func New(kind Kind) Message {
	return Message{Kind: kind}
}

// NewKick returns a Kick message naming ip.
func NewKick(ip string) Message {
	return Message{Kind: KindKick, IP: ip}
}

// NewJoin returns a Join message for u.
func NewJoin(u UserInfo) Message {
	return Message{Kind: KindJoin, User: &u}
}

// NewRaise returns a Raise message for amount.
func NewRaise(amount uint64) Message {
	return Message{Kind: KindRaise, Amount: amount}
}

func (m Message) String() string {
	switch m.Kind {
	case KindKick:
		return fmt.Sprintf("kick(%s)", m.IP)
	case KindJoin:
		if m.User != nil {
			return fmt.Sprintf("join(%s@%s)", m.User.Name, m.User.IP)
		}
	case KindRaise:
		return fmt.Sprintf("raise(%d)", m.Amount)
	}
	return string(m.Kind)
}
