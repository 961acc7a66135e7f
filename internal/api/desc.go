package api

import (
	"context"

	"google.golang.org/grpc"
)

const servicePrefix = "vibechat.v1."

// Full method names, as clients pass them to Invoke and NewStream.
const (
	MethodGetStatus            = "/" + servicePrefix + "SessionService/GetStatus"
	MethodListConversations    = "/" + servicePrefix + "ConversationService/List"
	MethodRefreshConversations = "/" + servicePrefix + "ConversationService/Refresh"
	MethodWatchConversations   = "/" + servicePrefix + "ConversationService/Watch"
	MethodRespond              = "/" + servicePrefix + "ConversationService/Respond"
	MethodWatchThread          = "/" + servicePrefix + "ThreadService/Watch"
	MethodSend                 = "/" + servicePrefix + "ThreadService/Send"
	MethodRetry                = "/" + servicePrefix + "ThreadService/Retry"
	MethodAckFailure           = "/" + servicePrefix + "ThreadService/AckFailure"
	MethodDeliverPush          = "/" + servicePrefix + "PushService/Deliver"
	MethodListNotifications    = "/" + servicePrefix + "NotificationService/List"
	MethodSearchNotifications  = "/" + servicePrefix + "NotificationService/Search"
	MethodMarkNotificationSeen = "/" + servicePrefix + "NotificationService/MarkSeen"
	MethodWatchEvents          = "/" + servicePrefix + "EventService/Watch"
)

// Stream descriptors for clients opening server streams.
var (
	WatchConversationsStream = &grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}
	WatchThreadStream        = &grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}
	WatchEventsStream        = &grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}
)

// SessionServer reports daemon status.
type SessionServer interface {
	GetStatus(context.Context, *Empty) (*StatusResponse, error)
}

// ConversationServer serves the conversation list.
type ConversationServer interface {
	List(context.Context, *ListConversationsRequest) (*ConversationList, error)
	Refresh(context.Context, *Empty) (*RefreshResponse, error)
	Watch(*ListConversationsRequest, grpc.ServerStream) error
	Respond(context.Context, *RespondRequest) (*Empty, error)
}

// ThreadServer serves single conversations and sending.
type ThreadServer interface {
	Watch(*WatchThreadRequest, grpc.ServerStream) error
	Send(context.Context, *SendRequest) (*SendResponse, error)
	Retry(context.Context, *MessageRef) (*SendResponse, error)
	AckFailure(context.Context, *MessageRef) (*AckFailureResponse, error)
}

// PushServer accepts push payloads from outside the daemon.
type PushServer interface {
	Deliver(context.Context, *DeliverPushRequest) (*Empty, error)
}

// NotificationServer serves stored notifications.
type NotificationServer interface {
	List(context.Context, *ListNotificationsRequest) (*NotificationList, error)
	Search(context.Context, *SearchNotificationsRequest) (*NotificationList, error)
	MarkSeen(context.Context, *MarkSeenRequest) (*Empty, error)
}

// EventServer streams bus events.
type EventServer interface {
	Watch(*WatchEventsRequest, grpc.ServerStream) error
}

// unary adapts a typed method to a grpc.MethodHandler.
func unary[S, Req, Resp any](fullMethod string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(S), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// serverStream adapts a typed server-streaming method to a grpc.StreamHandler.
func serverStream[S, Req any](call func(S, *Req, grpc.ServerStream) error) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		in := new(Req)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return call(srv.(S), in, stream)
	}
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: servicePrefix + "SessionService",
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: unary(MethodGetStatus, SessionServer.GetStatus)},
	},
	Metadata: "vibechat/v1/session",
}

var conversationServiceDesc = grpc.ServiceDesc{
	ServiceName: servicePrefix + "ConversationService",
	HandlerType: (*ConversationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: unary(MethodListConversations, ConversationServer.List)},
		{MethodName: "Refresh", Handler: unary(MethodRefreshConversations, ConversationServer.Refresh)},
		{MethodName: "Respond", Handler: unary(MethodRespond, ConversationServer.Respond)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: serverStream(ConversationServer.Watch), ServerStreams: true},
	},
	Metadata: "vibechat/v1/conversation",
}

var threadServiceDesc = grpc.ServiceDesc{
	ServiceName: servicePrefix + "ThreadService",
	HandlerType: (*ThreadServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: unary(MethodSend, ThreadServer.Send)},
		{MethodName: "Retry", Handler: unary(MethodRetry, ThreadServer.Retry)},
		{MethodName: "AckFailure", Handler: unary(MethodAckFailure, ThreadServer.AckFailure)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: serverStream(ThreadServer.Watch), ServerStreams: true},
	},
	Metadata: "vibechat/v1/thread",
}

var pushServiceDesc = grpc.ServiceDesc{
	ServiceName: servicePrefix + "PushService",
	HandlerType: (*PushServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deliver", Handler: unary(MethodDeliverPush, PushServer.Deliver)},
	},
	Metadata: "vibechat/v1/push",
}

var notificationServiceDesc = grpc.ServiceDesc{
	ServiceName: servicePrefix + "NotificationService",
	HandlerType: (*NotificationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: unary(MethodListNotifications, NotificationServer.List)},
		{MethodName: "Search", Handler: unary(MethodSearchNotifications, NotificationServer.Search)},
		{MethodName: "MarkSeen", Handler: unary(MethodMarkNotificationSeen, NotificationServer.MarkSeen)},
	},
	Metadata: "vibechat/v1/notification",
}

var eventServiceDesc = grpc.ServiceDesc{
	ServiceName: servicePrefix + "EventService",
	HandlerType: (*EventServer)(nil),
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: serverStream(EventServer.Watch), ServerStreams: true},
	},
	Metadata: "vibechat/v1/event",
}

// RegisterSessionServer registers s with r.
func RegisterSessionServer(r grpc.ServiceRegistrar, s SessionServer) {
	r.RegisterService(&sessionServiceDesc, s)
}

// RegisterConversationServer registers s with r.
func RegisterConversationServer(r grpc.ServiceRegistrar, s ConversationServer) {
	r.RegisterService(&conversationServiceDesc, s)
}

// RegisterThreadServer registers s with r.
func RegisterThreadServer(r grpc.ServiceRegistrar, s ThreadServer) {
	r.RegisterService(&threadServiceDesc, s)
}

// RegisterPushServer registers s with r.
func RegisterPushServer(r grpc.ServiceRegistrar, s PushServer) {
	r.RegisterService(&pushServiceDesc, s)
}

// RegisterNotificationServer registers s with r.
func RegisterNotificationServer(r grpc.ServiceRegistrar, s NotificationServer) {
	r.RegisterService(&notificationServiceDesc, s)
}

// RegisterEventServer registers s with r.
func RegisterEventServer(r grpc.ServiceRegistrar, s EventServer) {
	r.RegisterService(&eventServiceDesc, s)
}
