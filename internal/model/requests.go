package model

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	AccessToken string `json:"access_token"`
	Admin       *Admin `json:"admin"`
}

type StartSessionRequest struct {
	CustomerID string `json:"customer_id"`
	AdminID    string `json:"admin_id"`
}

type StartSessionResponse struct {
	Session *ChatSession `json:"session"`
	Created bool         `json:"created"`
}

type SendMessageRequest struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	FileRef     string `json:"file_ref,omitempty"`
}

type PresenceRequest struct {
	Online bool `json:"online"`
}

type AttachmentResponse struct {
	FileRef     string `json:"file_ref"`
	MessageType string `json:"message_type"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}
