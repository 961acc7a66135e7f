package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/vibein/vibechat/internal/api"
	"github.com/vibein/vibechat/internal/client"
	"github.com/vibein/vibechat/internal/config"
	"github.com/vibein/vibechat/internal/invite"
	"github.com/vibein/vibechat/internal/profile"
)

type env struct {
	profile string
	client  *client.Client
	json    bool
}

type command struct {
	usage string
	help  string
	// streaming commands run until interrupted instead of under a timeout.
	streaming bool
	run       func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"status":        {"status", "Show daemon and push link status", false, cmdStatus},
	"conversations": {"conversations [--filter all|requests|unread] [--watch]", "List conversations", true, cmdConversations},
	"refresh":       {"refresh", "Refetch the conversation list", false, cmdRefresh},
	"send":          {"send <user> <text...>", "Send a text message", false, cmdSend},
	"send-images":   {"send-images <user> <file...>", "Upload files and send them as one image message", false, cmdSendImages},
	"retry":         {"retry <user> <temp-id>", "Resend a failed message", false, cmdRetry},
	"push":          {"push key=value...", "Hand a push payload to the daemon", false, cmdPush},
	"notifications": {"notifications [--unseen] [--limit n] [--offset n] [--search q]", "List or search notifications", false, cmdNotifications},
	"seen":          {"seen <id>", "Mark a notification as seen", false, cmdSeen},
	"accept":        {"accept <user>", "Accept a connection request", false, cmdRespond(true)},
	"decline":       {"decline <user>", "Decline a connection request", false, cmdRespond(false)},
	"invite":        {"invite", "Print your connect link as a QR code", false, cmdInvite},
	"events":        {"events [namespace]", "Stream daemon events", true, cmdEvents},
	"thread":        {"thread <user>", "Stream one conversation", true, cmdThread},
}

var order = []string{
	"status", "conversations", "refresh", "thread", "send", "send-images", "retry",
	"accept", "decline", "notifications", "seen", "push", "invite", "events",
}

func main() {
	global := pflag.NewFlagSet("vibechatctl", pflag.ContinueOnError)
	profileFlag := global.StringP("profile", "p", "", "profile name (overrides config default)")
	jsonFlag := global.Bool("json", false, "output in JSON format")
	global.SetInterspersed(false)
	global.Usage = printUsage
	if err := global.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fatal(err)
	}

	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(2)
	}

	c, err := client.New(profile.SocketPath(name))
	if err != nil {
		fatal(fmt.Errorf("cannot connect to daemon for profile %q: %w", name, err))
	}
	defer func() { _ = c.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if !cmd.streaming {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
	}

	e := &env{profile: name, client: c, json: *jsonFlag}
	if err := cmd.run(ctx, e, args[1:]); err != nil {
		fatal(err)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: vibechatctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	for _, name := range order {
		c := commands[name]
		fmt.Fprintf(os.Stderr, "  %-62s %s\n", c.usage, c.help)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func usageError(usage string) error {
	return fmt.Errorf("usage: vibechatctl %s", usage)
}

func (e *env) output(v any, text func(w io.Writer)) {
	if e.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
		}
		return
	}
	text(os.Stdout)
}

func cmdStatus(ctx context.Context, e *env, _ []string) error {
	st, err := e.client.Status(ctx)
	if err != nil {
		return err
	}
	e.output(st, func(w io.Writer) {
		fmt.Fprintf(w, "Profile:       %s\n", st.Profile)
		fmt.Fprintf(w, "User:          %s\n", st.UserID)
		link := st.Link
		if st.LinkDetail != "" {
			link += " (" + st.LinkDetail + ")"
		}
		fmt.Fprintf(w, "Push link:     %s since %s\n", link, st.LinkSince.Format(time.Kitchen))
		fmt.Fprintf(w, "Uptime:        %s\n", (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second))
		fmt.Fprintf(w, "Open threads:  %d (viewing: %s)\n", st.OpenThreads, strings.Join(st.Viewing, ", "))
		fmt.Fprintf(w, "Notifications: %d (%d unseen)\n", st.Notifications, st.Unseen)
	})
	return nil
}

func cmdConversations(ctx context.Context, e *env, args []string) error {
	fs := pflag.NewFlagSet("conversations", pflag.ContinueOnError)
	filter := fs.StringP("filter", "f", "all", "all, requests or unread")
	watch := fs.BoolP("watch", "w", false, "keep printing the list as it changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	show := func(list *api.ConversationList) {
		e.output(list, func(w io.Writer) {
			fmt.Fprintf(w, "all %d · requests %d · unread %d\n",
				list.Counts["all"], list.Counts["requests"], list.Counts["unread"])
			if list.Error != "" {
				fmt.Fprintf(w, "(refresh failed: %s)\n", list.Error)
			}
			for _, c := range list.Conversations {
				unread := ""
				if c.UnreadCount > 0 {
					unread = fmt.Sprintf(" [%d]", c.UnreadCount)
				}
				fmt.Fprintf(w, "%-20s %-24s %-9s %s%s\n", c.OtherUserID, c.Name, c.ConnectionStatus, c.LastMessage, unread)
			}
		})
	}
	if !*watch {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		list, err := e.client.Conversations(ctx, *filter)
		if err != nil {
			return err
		}
		show(list)
		return nil
	}

	stream, err := e.client.WatchConversations(ctx, *filter)
	if err != nil {
		return err
	}
	for {
		list, err := stream.Recv()
		if err != nil {
			return ignoreEnd(ctx, err)
		}
		show(list)
	}
}

func cmdRefresh(ctx context.Context, e *env, _ []string) error {
	resp, err := e.client.Refresh(ctx)
	if err != nil {
		return err
	}
	e.output(resp, func(w io.Writer) { fmt.Fprintf(w, "%d conversations\n", resp.Count) })
	return nil
}

func printSend(e *env, resp *api.SendResponse) error {
	e.output(resp, func(w io.Writer) {
		if resp.Sent {
			fmt.Fprintf(w, "sent %s (temp %s)\n", resp.Message.MessageID, resp.TempID)
			return
		}
		fmt.Fprintf(w, "FAILED %s: %s\n", resp.TempID, resp.Error)
	})
	if !resp.Sent {
		return fmt.Errorf("send failed; retry with: vibechatctl retry <user> %s", resp.TempID)
	}
	return nil
}

func cmdSend(ctx context.Context, e *env, args []string) error {
	if len(args) < 2 {
		return usageError("send <user> <text...>")
	}
	resp, err := e.client.Send(ctx, &api.SendRequest{OtherUserID: args[0], Content: strings.Join(args[1:], " ")})
	if err != nil {
		return err
	}
	return printSend(e, resp)
}

func cmdSendImages(ctx context.Context, e *env, args []string) error {
	if len(args) < 2 {
		return usageError("send-images <user> <file...>")
	}
	resp, err := e.client.Send(ctx, &api.SendRequest{OtherUserID: args[0], Type: "image", Attachments: args[1:]})
	if err != nil {
		return err
	}
	return printSend(e, resp)
}

func cmdRetry(ctx context.Context, e *env, args []string) error {
	if len(args) != 2 {
		return usageError("retry <user> <temp-id>")
	}
	resp, err := e.client.Retry(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return printSend(e, resp)
}

func cmdPush(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return usageError("push key=value...")
	}
	data := make(map[string]string, len(args))
	for _, kv := range args {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("bad pair %q: want key=value", kv)
		}
		data[k] = v
	}
	if err := e.client.DeliverPush(ctx, data); err != nil {
		return err
	}
	e.output(map[string]bool{"delivered": true}, func(w io.Writer) { fmt.Fprintln(w, "delivered") })
	return nil
}

func cmdNotifications(ctx context.Context, e *env, args []string) error {
	fs := pflag.NewFlagSet("notifications", pflag.ContinueOnError)
	unseen := fs.BoolP("unseen", "u", false, "only unseen notifications")
	limit := fs.IntP("limit", "n", 20, "page size")
	offset := fs.Int("offset", 0, "rows to skip")
	search := fs.StringP("search", "s", "", "full-text query")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		list *api.NotificationList
		err  error
	)
	if *search != "" {
		list, err = e.client.SearchNotifications(ctx, *search, *limit)
	} else {
		list, err = e.client.Notifications(ctx, &api.ListNotificationsRequest{UnseenOnly: *unseen, Limit: *limit, Offset: *offset})
	}
	if err != nil {
		return err
	}
	e.output(list, func(w io.Writer) {
		if len(list.Notifications) == 0 {
			fmt.Fprintln(w, "No notifications.")
			return
		}
		for _, n := range list.Notifications {
			mark := " "
			if !n.Seen {
				mark = "*"
			}
			body := n.Body
			if n.Snippet != "" {
				body = n.Snippet
			}
			fmt.Fprintf(w, "%s %5d  %s  %-20s %s\n", mark, n.ID, n.CreatedAt.Format("Jan 02 15:04"), n.Title, body)
		}
		if list.HasMore {
			fmt.Fprintf(w, "more: --offset %d\n", *offset+len(list.Notifications))
		}
	})
	return nil
}

func cmdSeen(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return usageError("seen <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad id %q", args[0])
	}
	return e.client.MarkNotificationSeen(ctx, id)
}

func cmdRespond(accept bool) func(context.Context, *env, []string) error {
	return func(ctx context.Context, e *env, args []string) error {
		name := "decline"
		if accept {
			name = "accept"
		}
		if len(args) != 1 {
			return usageError(name + " <user>")
		}
		if err := e.client.Respond(ctx, args[0], accept); err != nil {
			return err
		}
		e.output(map[string]string{"other_user_id": args[0], "action": name}, func(w io.Writer) {
			fmt.Fprintf(w, "%sed %s\n", strings.TrimSuffix(name, "e"), args[0])
		})
		return nil
	}
}

func cmdInvite(ctx context.Context, e *env, _ []string) error {
	st, err := e.client.Status(ctx)
	if err != nil {
		return err
	}
	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		return err
	}
	if err := config.ApplyEnv(cfg, profile.EnvPath(e.profile)); err != nil {
		return err
	}
	link, err := invite.Link(cfg.Backend.URL, st.UserID)
	if err != nil {
		return err
	}
	if e.json {
		e.output(map[string]string{"link": link}, nil)
		return nil
	}
	qr, err := invite.Render(link, "  ")
	if err != nil {
		return err
	}
	fmt.Printf("\n%s\n  %s\n", qr, link)
	return nil
}

func cmdEvents(ctx context.Context, e *env, args []string) error {
	ns := ""
	if len(args) > 0 {
		ns = args[0]
	}
	stream, err := e.client.WatchEvents(ctx, ns)
	if err != nil {
		return err
	}
	for {
		evt, err := stream.Recv()
		if err != nil {
			return ignoreEnd(ctx, err)
		}
		e.output(evt, func(w io.Writer) {
			fmt.Fprintf(w, "%s  %-24s %s\n", evt.OccurredAt.Format("15:04:05.000"), evt.Kind, evt.Payload)
		})
	}
}

func cmdThread(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return usageError("thread <user>")
	}
	stream, err := e.client.WatchThread(ctx, args[0], false)
	if err != nil {
		return err
	}
	for {
		snap, err := stream.Recv()
		if err != nil {
			return ignoreEnd(ctx, err)
		}
		e.output(snap, func(w io.Writer) {
			fmt.Fprintf(w, "--- %s (%d messages, history %s)\n", snap.OtherUserID, len(snap.Messages), snap.History)
			for _, m := range snap.Messages {
				who := m.SenderID
				if m.SenderID != args[0] {
					who = "me"
				}
				fmt.Fprintf(w, "%s %-10s %-9s %s\n", m.Timestamp.Format("15:04"), who, m.Status, m.Content)
			}
		})
	}
}

// ignoreEnd turns the end of a stream caused by the user into a clean exit.
func ignoreEnd(ctx context.Context, err error) error {
	if errors.Is(err, io.EOF) || ctx.Err() != nil {
		return nil
	}
	return err
}
