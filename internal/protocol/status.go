package protocol

// ServerStatus is the JSON document returned in a StatusResponse. The field
// set mirrors the game's public status schema.
type ServerStatus struct {
	Version     StatusVersion `json:"version"`
	Players     StatusPlayers `json:"players"`
	Description ChatMessage   `json:"description"`
	Favicon     string        `json:"favicon,omitempty"`
}

// StatusVersion names the server software and the protocol version it speaks.
type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

// StatusPlayers reports player counts and an optional sample of who's online.
type StatusPlayers struct {
	Max    int32          `json:"max"`
	Online int32          `json:"online"`
	Sample []StatusPlayer `json:"sample,omitempty"`
}

// StatusPlayer is one entry in the online player sample.
type StatusPlayer struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ChatMessage is the minimal chat component the proxy emits: plain text.
type ChatMessage struct {
	Text string `json:"text"`
}
