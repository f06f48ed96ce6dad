package ws

import (
	"testing"

	"github.com/duelgrid/duel-backend/internal/session"
	"github.com/duelgrid/duel-backend/pkg/types"
)

func TestToSessionMsg(t *testing.T) {
	cases := []struct {
		name string
		in   types.ClientMessage
		want session.Msg
		ok   bool
	}{
		{
			name: "start",
			in:   types.ClientMessage{Type: types.EvtSessionStart},
			want: session.Start{ConnID: "c1"},
			ok:   true,
		},
		{
			name: "action keeps command and args",
			in:   types.ClientMessage{Type: types.EvtSessionAction, Command: "play", Args: map[string]any{"card": "deck-a-01"}},
			ok:   true,
		},
		{
			name: "leave",
			in:   types.ClientMessage{Type: types.EvtSessionLeave},
			want: session.Leave{ConnID: "c1"},
			ok:   true,
		},
		{
			name: "concede",
			in:   types.ClientMessage{Type: types.EvtSessionConcede},
			want: session.Concede{ConnID: "c1"},
			ok:   true,
		},
		{
			name: "mute",
			in:   types.ClientMessage{Type: types.EvtSessionMute, Muted: true},
			want: session.Mute{ConnID: "c1", Muted: true},
			ok:   true,
		},
		{
			name: "chat",
			in:   types.ClientMessage{Type: types.EvtSessionChat, Text: "glhf"},
			want: session.Say{ConnID: "c1", Text: "glhf"},
			ok:   true,
		},
		{
			name: "join is not session-scoped",
			in:   types.ClientMessage{Type: types.EvtSessionJoin},
			ok:   false,
		},
		{
			name: "watch is not session-scoped",
			in:   types.ClientMessage{Type: types.EvtLobbyWatch},
			ok:   false,
		},
		{
			name: "unknown type",
			in:   types.ClientMessage{Type: "bogus"},
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toSessionMsg("c1", tc.in)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if !tc.ok {
				return
			}
			if action, isAction := got.(session.Action); isAction {
				if action.ConnID != "c1" || action.Name != "play" || action.Args["card"] != "deck-a-01" {
					t.Fatalf("action fields lost: %+v", action)
				}
				return
			}
			if got != tc.want {
				t.Fatalf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}
