package admin

// CommandRequest is the JSON body of a command-trigger endpoint,
// shaped after the teacher's own admin command envelope but stripped
// of any pipeline-framework coupling.
type CommandRequest struct {
	ID       byte `json:"id"`
	Weekday  byte `json:"weekday"`
	Hour     byte `json:"hour"`
	Minute   byte `json:"minute"`
	RunCount byte `json:"runCount"`
}

// CommandResponse is the JSON body returned by every mutating endpoint.
type CommandResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
