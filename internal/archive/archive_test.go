package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelgrid/duel-backend/internal/engine"
)

func TestEncodeRoster_ReducesDecksToIdentifiers(t *testing.T) {
	roster := engine.Roster{
		{User: "alice", Side: "corp", DeckID: "deck-a"},
		{User: "bob", Side: "runner", DeckID: "deck-b"},
	}

	encoded := EncodeRoster(roster)
	assert.JSONEq(t, `[
		{"user":"alice","side":"corp","deck_id":"deck-a"},
		{"user":"bob","side":"runner","deck_id":"deck-b"}
	]`, encoded)
}

func TestNoop_AcceptsEverything(t *testing.T) {
	var store Store = Noop{}
	require.NoError(t, store.RecordStart(context.Background(), &GameRecord{SessionID: "G1"}))
	require.NoError(t, store.RecordFinish(context.Background(), "G1", "runner", time.Now()))
}
