package protocol

// HelloPayload opens a viewer connection. LastSeq carries the newest
// frame sequence a reconnecting viewer applied; when it does not match
// the server's counter the stream reopens with a snapshot.
type HelloPayload struct {
	ClientID     string `json:"client_id,omitempty"`
	ClientType   string `json:"client_type,omitempty"`
	Cols         int    `json:"cols"`
	Rows         int    `json:"rows"`
	WantsControl bool   `json:"wants_control,omitempty"`
	LastSeq      uint64 `json:"last_seq,omitempty"`
}

// WelcomePayload answers a hello with the session geometry, whether a
// control request was granted, and who holds control right now.
type WelcomePayload struct {
	ServerCols     int    `json:"server_cols"`
	ServerRows     int    `json:"server_rows"`
	GrantedControl bool   `json:"granted_control"`
	HolderClientID string `json:"holder_client_id,omitempty"`
}

// InputPayload carries viewer keystrokes to the session shell. Sending
// input claims control when the server permits viewer control at all.
type InputPayload struct {
	Data []byte `json:"data"`
}

// ResizePayload requests a session grid resize, under the same control
// rules as input.
type ResizePayload struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// ControlPayload announces the control holder after every change.
type ControlPayload struct {
	HolderClientID string `json:"holder_client_id"`
}

// ErrorPayload reports a server-side rejection, such as input from a
// viewer while control is not permitted.
type ErrorPayload struct {
	Message string `json:"message"`
}
