package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vibein/vibechat/internal/conversation"
	"github.com/vibein/vibechat/internal/message"
	"go.uber.org/zap/zaptest"
)

func testToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func writeEnvelope(w http.ResponseWriter, status string, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "message": msg, "data": data})
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{
		BaseURL: srv.URL,
		Token:   testToken(t, jwt.MapClaims{"sub": "me"}),
		Timeout: 2 * time.Second,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSelfFromToken(t *testing.T) {
	tests := []struct {
		name    string
		claims  jwt.MapClaims
		want    string
		wantErr bool
	}{
		{"subject", jwt.MapClaims{"sub": "U1"}, "U1", false},
		{"user_id string", jwt.MapClaims{"user_id": "U2"}, "U2", false},
		{"user_id number", jwt.MapClaims{"user_id": float64(42)}, "42", false},
		{"none", jwt.MapClaims{"role": "x"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SubjectFromToken(testToken(t, tt.claims))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("subject = %q, want %q", got, tt.want)
			}
		})
	}
	if _, err := SubjectFromToken("not-a-jwt"); err == nil {
		t.Error("malformed token should fail")
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	if _, err := New(Options{BaseURL: "ftp://x"}, nil); err == nil {
		t.Error("ftp scheme should be rejected")
	}
}

func TestSendMessageFormEncoded(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/send" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Error("missing bearer token")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("receiver_id") != "U2" || r.PostForm.Get("message_type") != "text" || r.PostForm.Get("message_content") != "hi" {
			t.Errorf("form = %v", r.PostForm)
		}
		writeEnvelope(w, "success", "", map[string]any{
			"message_id": "m1", "sender_id": "me", "receiver_id": "U2",
			"message_type": "text", "message_content": "hi", "timestamp": 1700000000,
		})
	}))

	m, err := c.SendMessage(context.Background(), "U2", message.TypeText, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if m.MessageID != "m1" || m.Status != message.Sent {
		t.Errorf("message = %+v", m)
	}
	if c.Self() != "me" {
		t.Errorf("self = %q, want me", c.Self())
	}
}

func TestSendMessageNumericIDs(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, "success", "", map[string]any{
			"message_id": 4711, "sender_id": 12, "receiver_id": 34,
			"message_type": "text", "message_content": "hi", "timestamp": 1700000000,
		})
	}))

	m, err := c.SendMessage(context.Background(), "34", message.TypeText, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if m.MessageID != "4711" || m.SenderID != "12" || m.ReceiverID != "34" {
		t.Errorf("message = %+v", m)
	}
}

func TestNonSuccessStatusSurfacesServerMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, "error", "You are not connected with this user", nil)
	}))

	_, err := c.SendMessage(context.Background(), "U2", message.TypeText, "hi")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if got := UserMessage(err); got != "You are not connected with this user" {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestHTTPErrorWithoutEnvelope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	err := c.MarkRead(context.Background(), []string{"m1"})
	var se *StatusError
	if !errors.As(err, &se) || se.HTTPStatus != http.StatusBadGateway {
		t.Fatalf("err = %v, want StatusError 502", err)
	}
}

func TestTransportErrorIsNotStatusError(t *testing.T) {
	c, err := New(Options{BaseURL: "http://127.0.0.1:1", UserID: "me", Timeout: time.Second}, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.ListConversations(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	var se *StatusError
	if errors.As(err, &se) {
		t.Error("transport error reported as StatusError")
	}
	if UserMessage(err) != "network error" {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
}

func TestListConversations(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, "success", "", []map[string]any{
			{"other_user_id": "U1", "name": "Ana", "unread_count": 2, "connection_status": "accepted"},
			{"other_user_id": "U2", "name": "Bo", "connection_status": "pending"},
		})
	}))
	got, err := c.ListConversations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].ConnectionStatus != conversation.Pending || got[0].UnreadCount != 2 {
		t.Errorf("conversations = %+v", got)
	}
}

func TestMarkReadSendsJSONIDs(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/mark-read" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body struct {
			MessageIDs []string `json:"message_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if len(body.MessageIDs) != 2 {
			t.Errorf("ids = %v", body.MessageIDs)
		}
		writeEnvelope(w, "success", "", nil)
	}))
	if err := c.MarkRead(context.Background(), []string{"m1", "m2"}); err != nil {
		t.Fatal(err)
	}
	if err := c.MarkDelivered(context.Background(), nil); err != nil {
		t.Errorf("empty MarkDelivered error = %v", err)
	}
}

func TestUploadMediaMultipart(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(f)
		if hdr.Filename != "abc.png" || string(data) != "PNGDATA" {
			t.Errorf("file = %s %q", hdr.Filename, data)
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("content type = %q", ct)
		}
		writeEnvelope(w, "success", "", map[string]string{"url": "https://cdn/abc.png"})
	}))
	url, err := c.UploadMedia(context.Background(), Media{Filename: "abc.png", ContentType: "image/png", Data: []byte("PNGDATA")})
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://cdn/abc.png" {
		t.Errorf("url = %q", url)
	}
}

func TestRespondConnectionPath(t *testing.T) {
	var got string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Path
		writeEnvelope(w, "success", "", nil)
	}))
	if err := c.RespondConnection(context.Background(), "U7", false); err != nil {
		t.Fatal(err)
	}
	if got != "/api/connections/U7/decline" {
		t.Errorf("path = %q", got)
	}
}
