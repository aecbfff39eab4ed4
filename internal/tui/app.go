package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/tabsync/internal/tui/keys"
	"github.com/matheus3301/tabsync/internal/tui/model"
	"github.com/matheus3301/tabsync/internal/tui/ui"
	"github.com/matheus3301/tabsync/internal/tui/views"
	"github.com/rivo/tview"
)

const (
	pageFriends = "friends"
	pageChats   = "chats"
	pageChat    = "chat"
	pageLogin   = "login"
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	root      *tview.Flex
	vm        *model.ViewModel
	registry  *keys.Registry
	statusBar *views.StatusBar
	friends   *views.FriendsTable
	convs     *views.ConversationList
	msgView   *views.MessageView
	composer  *views.Composer
	login     *views.LoginForm
	prompt    *tview.InputField
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(d model.Daemon, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        model.NewViewModel(d),
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(sessionName),
		friends:   views.NewFriendsTable(theme),
		convs:     views.NewConversationList(theme),
		msgView:   views.NewMessageView(theme),
		composer:  views.NewComposer(),
		login:     views.NewLoginForm(theme),
		prompt:    tview.NewInputField().SetLabel(" : ").SetFieldWidth(0),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q',
		Description: "q:quit", Visible: true,
		Handler: a.Stop,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':',
		Description: ":cmd", Visible: true,
		Handler: a.showPrompt,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'f',
		Description: "f:friends", Visible: true,
		Handler: func() { a.show(pageFriends) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'c',
		Description: "c:chats", Visible: true,
		Handler: func() { a.show(pageChats) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'r',
		Description: "r:refresh", Visible: true,
		Handler: func() { go a.refresh(true) },
	})
	a.registry.AddPage(pageFriends, &keys.Action{
		Key: tcell.KeyRune, Rune: 'p',
		Description: "p:publish tab", Visible: true,
		Handler: func() { go a.publish() },
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i',
		Description: "i:write", Visible: true,
		Handler: func() { a.app.SetFocus(a.composer) },
	})
}

func (a *App) setupCallbacks() {
	a.convs.SetSelectedFunc(func(_, _ int) {
		if c, ok := a.convs.Selected(); ok {
			a.openConversation(c.ID, c.Title(a.vm.SelfID()))
		}
	})

	a.composer.SetOnSend(func(text string) {
		go func() {
			a.vm.Flash.Error("Send failed", a.vm.Send(a.ctx, text))
			a.app.QueueUpdateDraw(a.drawMessages)
		}()
	})

	a.login.SetOnSubmit(func(identifier, password string) {
		go func() {
			if err := a.vm.Login(a.ctx, identifier, password); err != nil {
				a.vm.Flash.Error("Login failed", err)
				a.app.QueueUpdateDraw(a.drawStatus)
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.login.Reset()
				a.show(pageFriends)
			})
			a.refresh(false)
		}()
	})

	a.prompt.SetDoneFunc(func(key tcell.Key) {
		text := a.prompt.GetText()
		a.hidePrompt()
		if key == tcell.KeyEnter && text != "" {
			a.runCommand(ParseCommand(text))
		}
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage(pageFriends, a.friends, true, true)
	a.pages.AddPage(pageChats, a.convs, true, false)
	a.pages.AddPage(pageChat, chatFlex, true, false)
	a.pages.AddPage(pageLogin, center(a.login, 50, 9), true, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.statusBar.SetHints(a.registry.Hints(pageFriends))

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		page, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape && page == pageChat {
			a.vm.CloseConversation()
			a.show(pageChats)
			return nil
		}

		// Text inputs and the login form get every key.
		switch a.app.GetFocus().(type) {
		case *tview.InputField, *tview.Button, *views.Composer:
			return event
		}
		if page == pageLogin {
			return event
		}

		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

func center(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 0, true).
			AddItem(nil, 0, 1, false), width, 0, true).
		AddItem(nil, 0, 1, false)
}

func (a *App) show(page string) {
	a.pages.SwitchToPage(page)
	switch page {
	case pageFriends:
		a.app.SetFocus(a.friends)
	case pageChats:
		a.app.SetFocus(a.convs)
	case pageChat:
		a.app.SetFocus(a.msgView)
	case pageLogin:
		a.app.SetFocus(a.login)
	}
	a.statusBar.SetHints(a.registry.Hints(page))
}

func (a *App) showPrompt() {
	a.prompt.SetText("")
	a.root.ResizeItem(a.prompt, 1, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	page, _ := a.pages.GetFrontPage()
	a.show(page)
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case CmdFriends:
		a.show(pageFriends)
	case CmdChats:
		a.show(pageChats)
	case CmdLogin:
		a.show(pageLogin)
	case CmdLogout:
		go func() {
			a.vm.Flash.Error("Logout failed", a.vm.Logout(a.ctx))
			a.app.QueueUpdateDraw(func() {
				a.drawAll()
				a.show(pageLogin)
			})
		}()
	case CmdPublish:
		go a.publish()
	case CmdRefresh:
		a.vm.Flash.Clear()
		go a.refresh(true)
	case CmdQuit:
		a.Stop()
	default:
		a.vm.Flash.Info("Unknown command: " + cmd.Name)
		a.drawStatus()
	}
}

func (a *App) openConversation(id, title string) {
	go func() {
		if err := a.vm.OpenConversation(a.ctx, id); err != nil {
			a.vm.Flash.Error("Load failed", err)
			a.app.QueueUpdateDraw(a.drawStatus)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.msgView.SetConversationName(title)
			a.drawMessages()
			a.show(pageChat)
		})
	}()
}

func (a *App) publish() {
	if err := a.vm.PublishActiveTab(a.ctx); err != nil {
		a.vm.Flash.Error("Publish failed", err)
	} else {
		a.vm.Flash.Info("Active tab published")
	}
	a.app.QueueUpdateDraw(a.drawStatus)
}

// refresh reloads everything; with remote set, friends and conversations
// are refetched from the backend by the daemon.
func (a *App) refresh(remote bool) {
	if err := a.vm.LoadStatus(a.ctx); err != nil {
		a.vm.Flash.Error("Daemon unreachable", err)
		a.app.QueueUpdateDraw(a.drawStatus)
		return
	}
	if st := a.vm.Status(); st != nil && st.LoggedIn {
		a.vm.Flash.Error("Friends", a.vm.LoadFriends(a.ctx, remote))
		a.vm.Flash.Error("Conversations", a.vm.LoadConversations(a.ctx, remote))
	}
	a.app.QueueUpdateDraw(a.drawAll)
}

func (a *App) drawAll() {
	a.drawStatus()
	a.friends.Update(a.vm.Friends())
	a.convs.Update(a.vm.Conversations(), a.vm.SelfID())
}

func (a *App) drawStatus() {
	a.statusBar.SetStatus(a.vm.Status())
	a.statusBar.SetFlash(a.vm.Flash.Get(), a.vm.Flash.IsError())
}

func (a *App) drawMessages() {
	a.msgView.Update(a.vm.Messages(), a.vm.SelfID())
	a.drawStatus()
}

func (a *App) onChange(c model.Change) {
	switch c {
	case model.ChangeConversations:
		go func() {
			_ = a.vm.LoadConversations(a.ctx, false)
			a.app.QueueUpdateDraw(func() { a.convs.Update(a.vm.Conversations(), a.vm.SelfID()) })
		}()
	case model.ChangeMessages:
		go func() {
			if id := a.vm.ActiveConversation(); id != "" {
				_ = a.vm.OpenConversation(a.ctx, id)
			}
			a.app.QueueUpdateDraw(a.drawMessages)
		}()
	case model.ChangeFriends:
		a.app.QueueUpdateDraw(func() { a.friends.Update(a.vm.Friends()) })
	default:
		a.app.QueueUpdateDraw(a.drawStatus)
	}
}

// watchLoop keeps an event stream open, reopening it after errors.
func (a *App) watchLoop() {
	for a.ctx.Err() == nil {
		if err := a.vm.Watch(a.ctx, a.onChange); err != nil {
			a.vm.Flash.Error("Event stream lost", err)
			a.app.QueueUpdateDraw(a.drawStatus)
		}
		select {
		case <-time.After(2 * time.Second):
		case <-a.ctx.Done():
		}
	}
}

func (a *App) tick() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = a.vm.LoadStatus(a.ctx)
			a.app.QueueUpdateDraw(a.drawStatus)
		case <-a.ctx.Done():
			return
		}
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		a.refresh(false)
		if st := a.vm.Status(); st != nil && !st.LoggedIn {
			a.app.QueueUpdateDraw(func() { a.show(pageLogin) })
		}
		go a.watchLoop()
		a.tick()
	}()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
