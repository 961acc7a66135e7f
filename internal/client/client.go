// Package client is the Go client for the daemon's local gRPC API.
package client

import (
	"context"
	"fmt"

	"github.com/vibein/vibechat/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Client wraps a gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket. The connection is lazy: a
// daemon that is not running shows up on the first call.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Healthy reports whether the daemon answers the standard health check.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stream is a typed server stream. Recv returns io.EOF when the server ends it.
type Stream[T any] struct {
	cs grpc.ClientStream
}

// Recv waits for the next message.
func (s *Stream[T]) Recv() (*T, error) {
	out := new(T)
	if err := s.cs.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}

func openStream[T any](ctx context.Context, c *Client, desc *grpc.StreamDesc, method string, req any) (*Stream[T], error) {
	cs, err := c.conn.NewStream(ctx, desc, method)
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(req); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &Stream[T]{cs: cs}, nil
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	return invoke[api.StatusResponse](ctx, c, api.MethodGetStatus, &api.Empty{})
}

// Conversations lists conversations for a filter ("all", "requests", "unread").
func (c *Client) Conversations(ctx context.Context, filter string) (*api.ConversationList, error) {
	return invoke[api.ConversationList](ctx, c, api.MethodListConversations, &api.ListConversationsRequest{Filter: filter})
}

// Refresh refetches the conversation list from the backend.
func (c *Client) Refresh(ctx context.Context) (*api.RefreshResponse, error) {
	return invoke[api.RefreshResponse](ctx, c, api.MethodRefreshConversations, &api.Empty{})
}

// WatchConversations streams the filtered list on every change.
func (c *Client) WatchConversations(ctx context.Context, filter string) (*Stream[api.ConversationList], error) {
	return openStream[api.ConversationList](ctx, c, api.WatchConversationsStream, api.MethodWatchConversations,
		&api.ListConversationsRequest{Filter: filter})
}

// Respond accepts or declines a connection request.
func (c *Client) Respond(ctx context.Context, otherUserID string, accept bool) error {
	_, err := invoke[api.Empty](ctx, c, api.MethodRespond, &api.RespondRequest{OtherUserID: otherUserID, Accept: accept})
	return err
}

// WatchThread streams one conversation. With foreground set the daemon
// treats the stream as the user viewing it.
func (c *Client) WatchThread(ctx context.Context, otherUserID string, foreground bool) (*Stream[api.ThreadSnapshot], error) {
	return openStream[api.ThreadSnapshot](ctx, c, api.WatchThreadStream, api.MethodWatchThread,
		&api.WatchThreadRequest{OtherUserID: otherUserID, Foreground: foreground})
}

// Send sends a message.
func (c *Client) Send(ctx context.Context, req *api.SendRequest) (*api.SendResponse, error) {
	return invoke[api.SendResponse](ctx, c, api.MethodSend, req)
}

// Retry resends a failed message.
func (c *Client) Retry(ctx context.Context, otherUserID, tempID string) (*api.SendResponse, error) {
	return invoke[api.SendResponse](ctx, c, api.MethodRetry, &api.MessageRef{OtherUserID: otherUserID, TempID: tempID})
}

// AckFailure consumes a send failure signal.
func (c *Client) AckFailure(ctx context.Context, otherUserID, tempID string) (bool, error) {
	resp, err := invoke[api.AckFailureResponse](ctx, c, api.MethodAckFailure, &api.MessageRef{OtherUserID: otherUserID, TempID: tempID})
	if err != nil {
		return false, err
	}
	return resp.Acked, nil
}

// DeliverPush hands a push data map to the daemon.
func (c *Client) DeliverPush(ctx context.Context, data map[string]string) error {
	_, err := invoke[api.Empty](ctx, c, api.MethodDeliverPush, &api.DeliverPushRequest{Data: data})
	return err
}

// Notifications pages through stored notifications.
func (c *Client) Notifications(ctx context.Context, req *api.ListNotificationsRequest) (*api.NotificationList, error) {
	return invoke[api.NotificationList](ctx, c, api.MethodListNotifications, req)
}

// SearchNotifications runs a full-text query over notifications.
func (c *Client) SearchNotifications(ctx context.Context, query string, limit int) (*api.NotificationList, error) {
	return invoke[api.NotificationList](ctx, c, api.MethodSearchNotifications, &api.SearchNotificationsRequest{Query: query, Limit: limit})
}

// MarkNotificationSeen flags one notification as seen.
func (c *Client) MarkNotificationSeen(ctx context.Context, id int64) error {
	_, err := invoke[api.Empty](ctx, c, api.MethodMarkNotificationSeen, &api.MarkSeenRequest{ID: id})
	return err
}

// WatchEvents streams daemon events, optionally limited to a namespace.
func (c *Client) WatchEvents(ctx context.Context, namespace string) (*Stream[api.Event], error) {
	return openStream[api.Event](ctx, c, api.WatchEventsStream, api.MethodWatchEvents, &api.WatchEventsRequest{Namespace: namespace})
}
