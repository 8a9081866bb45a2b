package main

import (
	"testing"

	"github.com/NicolasHaas/gotable/pkg/protocol"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		line   string
		kind   protocol.Kind
		amount uint64
		leave  bool
		err    bool
	}{
		{line: "raise 20", kind: protocol.KindRaise, amount: 20},
		{line: "call", kind: protocol.KindCall},
		{line: "fold", kind: protocol.KindFold},
		{line: "check", kind: protocol.KindCheck},
		{line: "close", leave: true},
		{line: "quit", leave: true},
		{line: "raise", err: true},
		{line: "raise lots", err: true},
		{line: "raise -1", err: true},
		{line: "bluff", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			msg, leave, err := parseAction(tt.line)
			if (err != nil) != tt.err {
				t.Fatalf("err = %v, want error=%v", err, tt.err)
			}
			if tt.err {
				return
			}
			if leave != tt.leave {
				t.Fatalf("leave = %v, want %v", leave, tt.leave)
			}
			if !leave && (msg.Kind != tt.kind || msg.Amount != tt.amount) {
				t.Fatalf("msg = %s, want %s %d", msg, tt.kind, tt.amount)
			}
		})
	}
}
