package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/tabsync/internal/backend"
	"github.com/matheus3301/tabsync/internal/bus"
	"github.com/matheus3301/tabsync/internal/chat"
	"github.com/matheus3301/tabsync/internal/credential"
	"github.com/matheus3301/tabsync/internal/presence"
	"github.com/matheus3301/tabsync/internal/store"
)

// callLog records the order of connection and supervisor calls.
type callLog []string

func (l *callLog) add(call string) {
	if l != nil {
		*l = append(*l, call)
	}
}

type fakeConn struct {
	connects, disconnects int
	connectErr            error
	log                   *callLog
}

func (f *fakeConn) Connect(context.Context) error {
	f.connects++
	f.log.add("connect")
	return f.connectErr
}

func (f *fakeConn) Disconnect() {
	f.disconnects++
	f.log.add("disconnect")
}

func (f *fakeConn) IsConnected() bool { return f.connects > f.disconnects }

type fakeSupervisor struct {
	starts, stops int
	log           *callLog
}

func (f *fakeSupervisor) Start() bool {
	f.starts++
	f.log.add("supervisor start")
	return true
}

func (f *fakeSupervisor) Stop() {
	f.stops++
	f.log.add("supervisor stop")
}

// hangingConn blocks in Connect until released.
type hangingConn struct {
	entered chan struct{}
	release chan struct{}
}

func (h *hangingConn) Connect(ctx context.Context) error {
	close(h.entered)
	<-h.release
	return nil
}

func (h *hangingConn) Disconnect()       {}
func (h *hangingConn) IsConnected() bool { return false }

type fakePublisher struct {
	calls int
}

func (f *fakePublisher) PublishActiveTab(context.Context) error {
	f.calls++
	return nil
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// restBackend serves login, friends and conversations.
func restBackend(t *testing.T) *httptest.Server {
	t.Helper()
	reply := func(w http.ResponseWriter, data any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "invalid credentials"})
			return
		}
		reply(w, map[string]string{"id": "u1", "token": "tok-1", "username": body["identifier"], "displayName": "Alice"})
	})
	mux.HandleFunc("GET /api/friends/firends-with-status", func(w http.ResponseWriter, r *http.Request) {
		reply(w, []map[string]any{
			{"id": "f1", "username": "bob", "isOnline": true, "activeTab": map[string]any{"title": "Docs", "url": "https://docs"}, "allTabs": []map[string]any{{"id": 1, "title": "Docs", "url": "https://docs"}}},
			{"id": "f2", "username": "carol", "isOnline": false, "lastSeen": "2026-10-01T10:00:00Z"},
		})
	})
	mux.HandleFunc("GET /api/conversation", func(w http.ResponseWriter, r *http.Request) {
		reply(w, []map[string]any{{"id": "m-c1", "conversation": map[string]any{"id": "c1", "type": "DIRECT"}, "status": "ACCEPTED", "unreadCount": 2}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	log   callLog
	ctrl  *Controller
	conn  *fakeConn
	sup   *fakeSupervisor
	pub   *fakePublisher
	creds *credential.Store
	chat  *chat.Store
	cache *presence.Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testDB(t)
	b := bus.New()
	creds := credential.NewStore(db)
	api := backend.New(backend.Options{BaseURL: restBackend(t).URL}, creds, nil)
	f := &fixture{
		pub:   &fakePublisher{},
		creds: creds,
		chat:  chat.NewStore(api, creds, b, nil),
		cache: presence.NewCache(db, b, nil),
	}
	f.conn = &fakeConn{log: &f.log}
	f.sup = &fakeSupervisor{log: &f.log}
	f.ctrl = New(Deps{
		Conn:       f.conn,
		Supervisor: f.sup,
		Publisher:  f.pub,
		Creds:      creds,
		API:        api,
		Chat:       f.chat,
		Cache:      f.cache,
	})
	return f
}

func TestDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, msg := range []string{LoginSuccess, PopupOpened} {
		if err := f.ctrl.Dispatch(ctx, msg); err != nil {
			t.Fatalf("Dispatch(%s) = %v", msg, err)
		}
	}
	if f.conn.connects != 2 || f.sup.starts != 2 {
		t.Errorf("connects=%d starts=%d, want 2 each", f.conn.connects, f.sup.starts)
	}

	if err := f.ctrl.Dispatch(ctx, PublishActiveTab); err != nil {
		t.Fatal(err)
	}
	if f.pub.calls != 1 {
		t.Errorf("publisher calls = %d, want 1", f.pub.calls)
	}

	if err := f.ctrl.Dispatch(ctx, Logout); err != nil {
		t.Fatal(err)
	}
	if f.conn.disconnects != 1 || f.sup.stops != 1 {
		t.Errorf("disconnects=%d stops=%d, want 1 each", f.conn.disconnects, f.sup.stops)
	}

	if err := f.ctrl.Dispatch(ctx, "REBOOT"); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("Dispatch(REBOOT) = %v, want ErrUnknownMessage", err)
	}
}

func TestConnectFailureStillStartsSupervisor(t *testing.T) {
	f := newFixture(t)
	f.conn.connectErr = errors.New("refused")

	if err := f.ctrl.Dispatch(context.Background(), LoginSuccess); err != nil {
		t.Errorf("Dispatch() = %v, want transport failure swallowed", err)
	}
	if f.sup.starts != 1 {
		t.Error("supervisor not started after failed connect")
	}
}

func TestLoginAndLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cred, err := f.ctrl.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if cred.Token != "tok-1" || cred.DisplayName != "Alice" {
		t.Errorf("credential = %+v", cred)
	}
	if stored, err := f.creds.Load(); err != nil || stored.ID != "u1" {
		t.Errorf("stored credential = %+v, %v", stored, err)
	}
	if f.conn.connects != 1 || f.sup.starts != 1 {
		t.Error("login did not start the connection")
	}
	if convs := f.chat.Conversations(); len(convs) != 1 || convs[0].UnreadCount != 2 {
		t.Errorf("conversations = %+v", convs)
	}
	friends, _ := f.cache.Friends()
	if len(friends) != 2 {
		t.Fatalf("friends = %+v, want 2 seeded", friends)
	}

	if err := f.ctrl.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := f.creds.Load(); !errors.Is(err, credential.ErrNotFound) {
		t.Errorf("credential after logout: %v", err)
	}
	if f.conn.disconnects != 1 || f.sup.stops != 1 {
		t.Error("logout did not stop the connection")
	}
	if len(f.chat.Conversations()) != 0 {
		t.Error("conversations survived logout")
	}
	if friends, _ := f.cache.Friends(); len(friends) != 0 {
		t.Error("presence survived logout")
	}
}

func TestLoginRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.Login(context.Background(), "alice", "wrong")
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "invalid credentials" {
		t.Errorf("Login() error = %v, want APIError", err)
	}
	if f.conn.connects != 0 {
		t.Error("connected after rejected login")
	}
	if _, err := f.creds.Load(); !errors.Is(err, credential.ErrNotFound) {
		t.Error("credential stored after rejected login")
	}
}

func TestToPresence(t *testing.T) {
	got := ToPresence([]backend.Friend{{
		ID:        "f1",
		IsOnline:  true,
		ActiveTab: &backend.FriendTab{Title: "A", URL: "https://a"},
		AllTabs:   []backend.FriendTab{{ID: 1}, {ID: 2}},
	}})
	if len(got) != 1 || got[0].ActiveTab == nil || len(got[0].Tabs) != 2 || !got[0].Online {
		t.Errorf("ToPresence() = %+v", got)
	}
}

func TestLogoutStopsSupervisorBeforeDisconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.ctrl.Login(ctx, "alice", "pw"); err != nil {
		t.Fatal(err)
	}
	f.log = nil
	if err := f.ctrl.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	want := callLog{"supervisor stop", "disconnect"}
	if len(f.log) != len(want) || f.log[0] != want[0] || f.log[1] != want[1] {
		t.Errorf("logout calls = %v, want %v", f.log, want)
	}
}

func TestStartupDoesNotWaitForDial(t *testing.T) {
	f := newFixture(t)
	conn := &hangingConn{entered: make(chan struct{}), release: make(chan struct{})}
	defer close(conn.release)
	f.ctrl.conn = conn

	done := make(chan struct{})
	go func() {
		f.ctrl.Startup(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Startup blocked on a hanging dial")
	}
	if f.sup.starts != 1 {
		t.Errorf("supervisor starts = %d, want 1", f.sup.starts)
	}
	select {
	case <-conn.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Startup never attempted to connect")
	}
}
