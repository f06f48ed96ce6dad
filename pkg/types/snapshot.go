package types

// Full-state push ("start" / "state"):
//   payload is the role-filtered projection for the recipient. Players
//   receive the view for their own side, spectators the spectator view.
//
// Diff push ("diff"):
//   payload is an object holding only the top-level keys whose value
//   changed since the recipient's previous push; a client reconstructs
//   its view by shallow-merging the diff into the last full state.
//
// Directive ("directive"):
//   text: short instruction for the client ("watching", "pending", ...)
//   code: watch reply code (200 | 403 | 404) when answering lobby.watch
//
// Lobby ("lobby"):
//   payload is a session summary: id, started, players, spectators,
//   mute_spectators, password protection flag.
