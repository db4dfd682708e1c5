package gateway

// ChatRequest is the client-facing request body for both chat endpoints.
type ChatRequest struct {
	Message           string    `json:"message"`
	SystemInstruction string    `json:"systemInstruction,omitempty"`
	MissionID         string    `json:"missionId,omitempty"`
	History           []Message `json:"history,omitempty"`
}

// Message is one conversation turn in the provider's content format.
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

// providerPayload is the request document forwarded to the model provider.
// History is passed through as received; only the new user turn carries the
// sanitized message.
type providerPayload struct {
	SystemInstruction *instructionBlock `json:"systemInstruction,omitempty"`
	Contents          []Message         `json:"contents"`
}

type instructionBlock struct {
	Parts []Part `json:"parts"`
}

// providerChunk is the subset of a provider response document the stream
// transformer needs: the text delta path.
type providerChunk struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// streamEvent is the normalized frame re-emitted to clients.
type streamEvent struct {
	Text string `json:"text"`
}

// streamErrorEvent precedes the terminal sentinel when the upstream dies
// mid-stream, so clients can tell truncation from completion.
type streamErrorEvent struct {
	Error string `json:"error"`
}
