package domain

// RouteCommand is a decoded inbound send request.
type RouteCommand struct {
	ReceiverID string
	Text       string
	File       *FileUpload
}

// FileUpload carries a raw attachment as received from the client.
type FileUpload struct {
	Name string
	Data []byte
}

// IsEmpty reports a request with neither text nor file.
func (c RouteCommand) IsEmpty() bool {
	return c.Text == "" && c.File == nil
}
