package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/vibein/vibechat/internal/conversation"
	"github.com/vibein/vibechat/internal/message"
)

// ListConversations fetches the conversation list.
func (c *Client) ListConversations(ctx context.Context) ([]conversation.Conversation, error) {
	var wire []conversation.Wire
	if err := c.getJSON(ctx, "/api/chat/conversations", &wire); err != nil {
		return nil, err
	}
	out := make([]conversation.Conversation, 0, len(wire))
	for _, w := range wire {
		out = append(out, conversation.FromWire(w))
	}
	return out, nil
}

// History fetches the messages exchanged with otherUserID, oldest first.
func (c *Client) History(ctx context.Context, otherUserID string) ([]message.Message, error) {
	var wire []message.Wire
	if err := c.getJSON(ctx, "/api/chat/messages/"+url.PathEscape(otherUserID), &wire); err != nil {
		return nil, err
	}
	out := make([]message.Message, 0, len(wire))
	for _, w := range wire {
		out = append(out, message.FromWire(w))
	}
	return out, nil
}

// SendMessage posts a message and returns the server's copy.
func (c *Client) SendMessage(ctx context.Context, receiverID string, typ message.Type, content string) (message.Message, error) {
	form := url.Values{}
	form.Set("receiver_id", receiverID)
	form.Set("message_type", string(typ))
	form.Set("message_content", content)

	var w message.Wire
	if err := c.postForm(ctx, "/api/chat/send", form, &w); err != nil {
		return message.Message{}, err
	}
	if w.MessageID == "" {
		return message.Message{}, fmt.Errorf("send: server returned no message_id")
	}
	return message.FromWire(w), nil
}

// Media is a file ready for upload.
type Media struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadMedia uploads one file and returns its remote URL.
func (c *Client) UploadMedia(ctx context.Context, m Media) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, m.Filename))
	h.Set("Content-Type", m.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(m.Data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/chat/upload"), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("upload %s: server returned no url", m.Filename)
	}
	return out.URL, nil
}

type messageIDs struct {
	MessageIDs []string `json:"message_ids"`
}

// MarkDelivered acknowledges delivery of messages.
func (c *Client) MarkDelivered(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.postJSON(ctx, "/api/chat/mark-delivered", messageIDs{MessageIDs: ids}, nil)
}

// MarkRead acknowledges that messages were read.
func (c *Client) MarkRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.postJSON(ctx, "/api/chat/mark-read", messageIDs{MessageIDs: ids}, nil)
}

// RespondConnection accepts or declines a connection request from otherUserID.
func (c *Client) RespondConnection(ctx context.Context, otherUserID string, accept bool) error {
	action := "decline"
	if accept {
		action = "accept"
	}
	return c.postJSON(ctx, "/api/connections/"+url.PathEscape(otherUserID)+"/"+action, struct{}{}, nil)
}
