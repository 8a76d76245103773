package models

// ChatMessage is one message in a batch discussion thread.
type ChatMessage struct {
	ID         string   `json:"id"`
	BatchID    string   `json:"batch_id"`
	SenderID   string   `json:"sender_id"`
	SenderName string   `json:"sender_name"`
	SenderRole UserRole `json:"sender_role"`
	Body       string   `json:"message"`
	CreatedAt  string   `json:"created_at"`
}

// SendChatMessageRequest posts a message to a batch thread.
type SendChatMessageRequest struct {
	BatchID string `json:"batch_id" validate:"required"`
	Body    string `json:"message" validate:"required,notblank,max=2000"`
}
