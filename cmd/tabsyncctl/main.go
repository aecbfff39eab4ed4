package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/tabsync/internal/api"
	"github.com/matheus3301/tabsync/internal/chat"
	"github.com/matheus3301/tabsync/internal/client"
	"github.com/matheus3301/tabsync/internal/config"
	"github.com/matheus3301/tabsync/internal/control"
	"github.com/matheus3301/tabsync/internal/session"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Usage = printUsage
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Commands that do not need a daemon.
	switch args[0] {
	case "sessions":
		cmdSessions(*jsonFlag)
		return
	case "config":
		cmdConfig(args[1:])
		return
	}

	socketPath := session.SocketPath(sessionName)
	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	if args[0] == "watch" {
		cmdWatch(c, args[1:], *jsonFlag)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := printer{json: *jsonFlag}
	switch args[0] {
	case "status":
		out.status(must(c.Status(ctx)))
	case "login":
		identifier, password := loginArgs(args[1:])
		resp := must(c.Login(ctx, identifier, password))
		out.print(resp, fmt.Sprintf("Logged in as %s (%s)", resp.Username, resp.UserID))
	case "logout":
		out.ack(must(c.Logout(ctx)))
	case "connect":
		out.ack(must(c.Dispatch(ctx, control.PopupOpened)))
	case "publish":
		out.ack(must(c.PublishActiveTab(ctx)))
	case "tabs":
		out.tabs(must(c.ListTabs(ctx)))
	case "signup":
		out.ack(must(c.Signup(ctx, signupArgs(args[1:]))))
	case "friends":
		cmdFriends(ctx, c, out, args[1:])
	case "requests":
		cmdRequests(ctx, c, out, args[1:])
	case "conversations":
		resp := must(c.ListConversations(ctx, hasFlag(args[1:], "--refresh")))
		out.conversations(resp, must(c.Status(ctx)).UserID)
	case "messages":
		id := need(args, 1, "messages <conversation-id>")
		out.messages(must(c.LoadMessages(ctx, id, hasFlag(args[2:], "--seen"))))
	case "send":
		out.result(must(c.SendMessage(ctx, sendArgs(args[1:]))))
	case "seen":
		id := need(args, 1, "seen <conversation-id>")
		out.result(must(c.MarkSeen(ctx, id, hasFlag(args[2:], "--force"))))
	case "accept":
		out.result(must(c.AcceptRequest(ctx, need(args, 1, "accept <conversation-id>"))))
	case "reject":
		out.result(must(c.RejectRequest(ctx, need(args, 1, "reject <conversation-id>"))))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: tabsyncctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                         Show session status")
	fmt.Fprintln(os.Stderr, "  login <user> [password]        Log in ($TABSYNC_PASSWORD or stdin if omitted)")
	fmt.Fprintln(os.Stderr, "  logout                         Log out and clear credentials")
	fmt.Fprintln(os.Stderr, "  connect                        Ensure the realtime connection is up")
	fmt.Fprintln(os.Stderr, "  publish                        Publish the active tab")
	fmt.Fprintln(os.Stderr, "  tabs                           List local browser tabs")
	fmt.Fprintln(os.Stderr, "  signup <user> [password]       Create an account (--email, --display-name)")
	fmt.Fprintln(os.Stderr, "  friends [--refresh]            List friends and what they browse")
	fmt.Fprintln(os.Stderr, "  friends search <username>      Search users to befriend")
	fmt.Fprintln(os.Stderr, "  friends add <user-id>          Send a friend request")
	fmt.Fprintln(os.Stderr, "  requests [pending|sent|ignored]")
	fmt.Fprintln(os.Stderr, "                                 List friend requests")
	fmt.Fprintln(os.Stderr, "  requests accept|ignore|cancel <id>")
	fmt.Fprintln(os.Stderr, "                                 Act on a friend request")
	fmt.Fprintln(os.Stderr, "  conversations [--refresh]      List conversations")
	fmt.Fprintln(os.Stderr, "  messages <id> [--seen]         Show messages of a conversation")
	fmt.Fprintln(os.Stderr, "  send <id> <text>               Send a message")
	fmt.Fprintln(os.Stderr, "  send --to <user-id> <text>     Start a conversation with a message")
	fmt.Fprintln(os.Stderr, "  seen <id> [--force]            Mark a conversation seen")
	fmt.Fprintln(os.Stderr, "  accept <id>                    Accept a message request")
	fmt.Fprintln(os.Stderr, "  reject <id>                    Reject a message request")
	fmt.Fprintln(os.Stderr, "  watch [type...]                Stream daemon events")
	fmt.Fprintln(os.Stderr, "  sessions                       List known sessions")
	fmt.Fprintln(os.Stderr, "  config init                    Write the default config file")
}

func must[T any](v *T, err error) *T {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return v
}

func need(args []string, i int, usage string) string {
	if len(args) <= i || args[i] == "" {
		fmt.Fprintf(os.Stderr, "usage: tabsyncctl %s\n", usage)
		os.Exit(1)
	}
	return args[i]
}

func hasFlag(args []string, name string) bool {
	for _, a := range args {
		if a == name {
			return true
		}
	}
	return false
}

func loginArgs(args []string) (string, string) {
	identifier := need(args, 0, "login <user> [password]")
	if len(args) > 1 {
		return identifier, args[1]
	}
	return identifier, readPassword()
}

func readPassword() string {
	if pw := os.Getenv("TABSYNC_PASSWORD"); pw != "" {
		return pw
	}
	fmt.Fprint(os.Stderr, "password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintf(os.Stderr, "error: read password: %v\n", err)
		os.Exit(1)
	}
	return strings.TrimRight(line, "\r\n")
}

// signupArgs reads "<user> [password] [--email e] [--display-name n]".
func signupArgs(args []string) api.SignupRequest {
	const usage = "signup <user> [password] [--email <email>] [--display-name <name>]"
	var req api.SignupRequest
	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--email":
			req.Email = need(args, i+1, usage)
			i++
		case "--display-name":
			req.DisplayName = need(args, i+1, usage)
			i++
		default:
			positional = append(positional, args[i])
		}
	}
	req.Username = need(positional, 0, usage)
	if len(positional) > 1 {
		req.Password = positional[1]
	} else {
		req.Password = readPassword()
	}
	return req
}

func cmdFriends(ctx context.Context, c *client.Client, out printer, args []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "--") {
		out.friends(must(c.ListFriends(ctx, hasFlag(args, "--refresh"))))
		return
	}
	switch args[0] {
	case "search":
		out.users(must(c.SearchUsers(ctx, need(args, 1, "friends search <username>"))))
	case "add":
		out.ack(must(c.SendFriendRequest(ctx, need(args, 1, "friends add <user-id>"))))
	default:
		fmt.Fprintf(os.Stderr, "unknown friends command: %s\n", args[0])
		os.Exit(1)
	}
}

func cmdRequests(ctx context.Context, c *client.Client, out printer, args []string) {
	if len(args) == 0 {
		out.requests(must(c.FriendRequests(ctx, "")))
		return
	}
	switch args[0] {
	case "accept":
		out.ack(must(c.AcceptFriendRequest(ctx, need(args, 1, "requests accept <id>"))))
	case "ignore":
		out.ack(must(c.IgnoreFriendRequest(ctx, need(args, 1, "requests ignore <id>"))))
	case "cancel":
		out.ack(must(c.CancelFriendRequest(ctx, need(args, 1, "requests cancel <id>"))))
	default:
		out.requests(must(c.FriendRequests(ctx, args[0])))
	}
}

func sendArgs(args []string) api.SendMessageRequest {
	const usage = "send <conversation-id> <text> | send --to <user-id> <text>"
	if len(args) > 0 && args[0] == "--to" {
		receiver := need(args, 1, usage)
		return api.SendMessageRequest{ReceiverID: receiver, Content: strings.Join(args[2:], " ")}
	}
	id := need(args, 0, usage)
	return api.SendMessageRequest{ConversationID: id, Content: strings.Join(args[1:], " ")}
}

func cmdWatch(c *client.Client, types []string, jsonOut bool) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := c.Watch(ctx, types, func(e *api.Event) error {
		if jsonOut {
			outputJSON(e)
			return nil
		}
		ts := time.UnixMilli(e.OccurredAtUnixMs).Format("15:04:05")
		fmt.Printf("%s %-26s %s\n", ts, e.Type, e.Payload)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cmdSessions(jsonOut bool) {
	names, err := session.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(names)
		return
	}
	if len(names) == 0 {
		fmt.Println("No sessions found.")
		return
	}
	for _, n := range names {
		fmt.Println(n)
	}
}

func cmdConfig(args []string) {
	if len(args) == 0 || args[0] != "init" {
		fmt.Fprintln(os.Stderr, "usage: tabsyncctl config init")
		os.Exit(1)
	}
	path := session.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "config already exists: %s\n", path)
		os.Exit(1)
	}
	if err := config.Save(path, config.Default()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", path)
}

type printer struct {
	json bool
}

func (p printer) print(v any, text string) {
	if p.json {
		outputJSON(v)
		return
	}
	fmt.Println(text)
}

func (p printer) ack(a *api.Ack) {
	p.print(a, fmt.Sprintf("Success: %v - %s", a.Success, a.Message))
}

func (p printer) result(r *chat.Result) {
	if p.json {
		outputJSON(r)
		return
	}
	fmt.Printf("Success: %v - %s\n", r.Success, r.Message)
	if r.ConversationID != "" {
		fmt.Printf("Conversation: %s\n", r.ConversationID)
	}
	if !r.Success {
		os.Exit(1)
	}
}

func (p printer) status(s *api.StatusResponse) {
	if p.json {
		outputJSON(s)
		return
	}
	user := "(logged out)"
	if s.LoggedIn {
		user = fmt.Sprintf("%s (%s)", s.Username, s.UserID)
	}
	fmt.Printf("Session:    %s\n", s.Session)
	fmt.Printf("State:      %s\n", s.State)
	fmt.Printf("User:       %s\n", user)
	fmt.Printf("Connected:  %v (heartbeat %v, supervisor %v)\n", s.Connected, s.HeartbeatActive, s.SupervisorRunning)
	fmt.Printf("Browsers:   %d\n", s.BrowserClients)
	fmt.Printf("Pending:    %d\n", s.PendingMessages)
	fmt.Printf("Uptime:     %s\n", (time.Duration(s.UptimeMs) * time.Millisecond).String())
}

func (p printer) tabs(r *api.ListTabsResponse) {
	if p.json {
		outputJSON(r)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tWINDOW\tTITLE\tURL")
	for _, t := range r.Tabs {
		mark := ""
		if r.ActiveTabID != nil && *r.ActiveTabID == t.ID {
			mark = "*"
		}
		_, _ = fmt.Fprintf(w, "%d%s\t%d\t%s\t%s\n", t.ID, mark, t.WindowID, t.Title, t.URL)
	}
	_ = w.Flush()
}

func (p printer) friends(r *api.ListFriendsResponse) {
	if p.json {
		outputJSON(r)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FRIEND\tSTATUS\tACTIVE TAB\tTABS")
	for _, f := range r.Friends {
		state := "offline"
		if f.Online {
			state = "online"
		}
		active := ""
		if f.ActiveTab != nil {
			active = f.ActiveTab.Title + " " + f.ActiveTab.URL
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", f.Username, state, active, len(f.Tabs))
	}
	_ = w.Flush()
}

func (p printer) users(r *api.SearchUsersResponse) {
	if p.json {
		outputJSON(r)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tUSERNAME\tNAME")
	for _, u := range r.Users {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.Username, u.Name())
	}
	_ = w.Flush()
}

func (p printer) requests(r *api.ListFriendRequestsResponse) {
	if p.json {
		outputJSON(r)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFROM\tTO\tSTATUS\tCREATED")
	for _, fr := range r.Requests {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", fr.ID, fr.Sender.Name(), fr.Receiver.Name(), fr.Status, fr.CreatedAt)
	}
	_ = w.Flush()
}

func (p printer) conversations(r *api.ListConversationsResponse, selfID string) {
	if p.json {
		outputJSON(r)
		return
	}
	if !r.Result.Success {
		fmt.Fprintf(os.Stderr, "warning: %s\n", r.Result.Message)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSTATUS\tUNREAD\tLAST")
	for _, c := range r.Conversations {
		last := ""
		if m := c.Conversation.LastMessage; m != nil {
			last = m.Content
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", c.ID, c.Title(selfID), c.Status, c.UnreadCount, last)
	}
	_ = w.Flush()
}

func (p printer) messages(r *api.LoadMessagesResponse) {
	if p.json {
		outputJSON(r)
		return
	}
	if !r.Result.Success {
		fmt.Fprintf(os.Stderr, "error: %s\n", r.Result.Message)
		os.Exit(1)
	}
	for _, m := range r.Messages {
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt, m.Sender.Name(), m.Content)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
