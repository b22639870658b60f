package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/iboybrian/atitlan-vibes/internal/bus"
	"github.com/iboybrian/atitlan-vibes/internal/chat"
	"github.com/iboybrian/atitlan-vibes/internal/status"
	"github.com/iboybrian/atitlan-vibes/internal/tui/keys"
	"github.com/iboybrian/atitlan-vibes/internal/tui/model"
	"github.com/iboybrian/atitlan-vibes/internal/tui/ui"
	"github.com/iboybrian/atitlan-vibes/internal/tui/views"
)

const (
	pageRoom   = "room"
	pageNotice = "notice"
	pageHelp   = "help"
)

// Options configures the TUI.
type Options struct {
	Controller *chat.Controller
	Bus        *bus.Bus // the bus the controller publishes on
	Scope      chat.Scope
	Profile    string
	Logger     *zap.Logger
}

// App is the town chat room TUI.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	layout    *tview.Flex
	theme     *ui.Theme
	ctl       *chat.Controller
	bus       *bus.Bus
	scope     chat.Scope
	profile   string
	logger    *zap.Logger
	registry  *keys.Registry
	flash     model.Flash
	statusBar *views.StatusBar
	room      *views.RoomView
	composer  *views.Composer
	notice    *views.NoticeView
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(opts Options) *App {
	ctx, cancel := context.WithCancel(context.Background())
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		theme:     theme,
		ctl:       opts.Controller,
		bus:       opts.Bus,
		scope:     opts.Scope,
		profile:   opts.Profile,
		logger:    logger,
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(theme),
		room:      views.NewRoomView(theme),
		composer:  views.NewComposer(theme),
		notice:    views.NewNoticeView(theme),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetProfile(opts.Profile, "")
	a.statusBar.SetState(string(status.Initializing))
	a.room.ShowLoading()
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:leave", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "?:help", Visible: true,
		Handler: func() { a.pages.SwitchToPage(pageHelp) },
	})
	a.registry.AddPage(pageRoom, "compose", &keys.Action{
		Rune: 'i', Key: tcell.KeyRune,
		Description: "i:compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.composer.Input()) },
	})
	a.registry.AddPage(pageRoom, "command", &keys.Action{
		Rune: ':', Key: tcell.KeyRune,
		Description: ":cmd", Visible: true,
		Handler: func() {
			a.composer.SetText(":")
			a.app.SetFocus(a.composer.Input())
		},
	})
	a.registry.AddPage(pageRoom, "invite", &keys.Action{
		Rune: 'v', Key: tcell.KeyRune,
		Description: "v:invite", Visible: true,
		Handler: a.showInvite,
	})
	a.statusBar.SetHints(a.registry.Hints(pageRoom))
}

func (a *App) setupCallbacks() {
	a.composer.SetOnEdit(func(text string) {
		if !strings.HasPrefix(text, ":") {
			a.ctl.SetDraft(text)
		}
	})

	a.composer.SetOnCancel(func() {
		if _, ok := a.ctl.ReplyTarget(); ok {
			a.ctl.CancelReply()
			a.refresh()
			return
		}
		a.app.SetFocus(a.room)
	})

	a.composer.SetOnSend(func(text string) {
		a.composer.SetText("")
		if cmd, ok := strings.CutPrefix(text, ":"); ok {
			a.execute(ParseCommand(cmd))
			return
		}
		a.ctl.SetDraft(text)
		a.composer.SetReply(nil)
		go func() {
			_, err := a.ctl.Submit(a.ctx)
			if err != nil && !errors.Is(err, chat.ErrEmptyMessage) {
				a.flash.Set(model.Err, "Send failed: "+err.Error(), 8*time.Second)
			}
			a.app.QueueUpdateDraw(a.refresh)
		}()
		a.refresh()
	})
}

func (a *App) setupLayout() {
	a.layout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.room, 0, 1, true).
		AddItem(a.composer, a.composer.Height(), 0, false)

	a.pages.AddPage(pageRoom, a.layout, true, true)
	a.pages.AddPage(pageNotice, a.notice, true, false)
	a.pages.AddPage(pageHelp, views.NewHelpView(a.theme), true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)
	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		page, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape && page != pageRoom && a.ctl.State() == status.Ready {
			a.pages.SwitchToPage(pageRoom)
			a.app.SetFocus(a.room)
			return nil
		}

		// Let the composer handle all keys normally.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}
		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

// execute runs a ':' command typed in the composer.
func (a *App) execute(cmd Command) {
	msgs := a.ctl.Messages()
	switch cmd.Name {
	case "q", "quit", "leave":
		a.app.Stop()
	case "invite":
		a.showInvite()
	case "help":
		a.pages.SwitchToPage(pageHelp)
	case "reply":
		m, err := target(msgs, cmd.Args)
		if err == nil {
			err = a.ctl.ReplyTo(m.ID)
		}
		if err != nil {
			a.flash.Set(model.Warn, err.Error(), 5*time.Second)
		}
	case "react":
		m, emoji, err := parseReact(msgs, cmd.Args)
		switch {
		case err != nil:
			a.flash.Set(model.Warn, err.Error(), 5*time.Second)
		case emoji == "":
			a.flash.Set(model.Info, ":react "+cmd.Args+" N  "+palette(), 10*time.Second)
		default:
			if !isPaletteEmoji(emoji) {
				a.logger.Debug("reaction outside palette", zap.String("emoji", emoji))
			}
			go func() {
				if _, err := a.ctl.React(a.ctx, m.ID, emoji); err != nil {
					a.flash.Set(model.Err, "Reaction failed: "+err.Error(), 8*time.Second)
				}
				a.app.QueueUpdateDraw(a.refresh)
			}()
		}
	default:
		a.flash.Set(model.Warn, fmt.Sprintf("unknown command %q", cmd.Name), 5*time.Second)
	}
	a.refresh()
}

func (a *App) showInvite() {
	name := a.scope.TownID
	if room, ok := a.ctl.Room(); ok {
		name = room.Name
	}
	a.notice.ShowInvite(name, a.scope.TownID)
	a.pages.SwitchToPage(pageNotice)
}

// refresh redraws everything from controller state. Must run on the UI
// goroutine.
func (a *App) refresh() {
	state := a.ctl.State()
	a.statusBar.SetState(string(state))
	a.statusBar.SetProfile(a.profile, a.ctl.UserID())
	a.statusBar.SetSending(a.ctl.Sending())
	a.statusBar.SetFlash(a.flash.Get())

	switch state {
	case status.Unauthenticated:
		a.notice.ShowLogin(a.profile)
		a.pages.SwitchToPage(pageNotice)
		return
	case status.Unavailable:
		a.notice.ShowMessage("Chat Unavailable", "The chat for "+a.scope.TownID+" is unavailable right now.\n\nPress q to quit.")
		a.pages.SwitchToPage(pageNotice)
		return
	case status.Initializing:
		a.room.ShowLoading()
		return
	}

	if room, ok := a.ctl.Room(); ok {
		a.room.SetRoomName(room.Name)
	}
	a.room.Update(model.BuildLines(a.ctl, nil))

	var preview *model.ReplyPreview
	if m, ok := a.ctl.ReplyTarget(); ok {
		preview = &model.ReplyPreview{Sender: a.ctl.DisplayName(m.SenderID), Text: model.Truncate(m.Text, 40)}
	}
	a.composer.SetReply(preview)
	a.layout.ResizeItem(a.composer, a.composer.Height(), 0)
}

// watch redraws on every controller event until ctx ends. A dropped UI
// subscription is replaced; refresh reads full state so nothing is lost.
func (a *App) watch() {
	sub := a.bus.Subscribe("chat.", 64)
	defer func() { sub.Close() }()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-sub.Dropped():
			sub.Close()
			sub = a.bus.Subscribe("chat.", 64)
			a.app.QueueUpdateDraw(a.refresh)
		case evt := <-sub.Events():
			if evt.Kind == chat.EventError {
				if err, ok := evt.Payload.(error); ok {
					a.flash.Set(model.Err, err.Error(), 8*time.Second)
				}
			}
			a.app.QueueUpdateDraw(a.refresh)
		}
	}
}

// Run opens the room and runs the UI until the user leaves. The room is
// left before Run returns.
func (a *App) Run() error {
	if a.bus != nil {
		go a.watch()
	}
	go func() {
		err := a.ctl.Open(a.ctx, a.scope)
		switch {
		case err == nil:
		case errors.Is(err, chat.ErrLoadFailed):
			a.flash.Set(model.Warn, "Could not load history: "+err.Error(), 10*time.Second)
		case errors.Is(err, chat.ErrUnauthenticated), errors.Is(err, chat.ErrRoomUnavailable):
		default:
			a.flash.Set(model.Err, err.Error(), 10*time.Second)
		}
		a.app.QueueUpdateDraw(a.refresh)
		a.clockLoop()
	}()

	err := a.app.Run()
	a.cancel()
	if leaveErr := a.ctl.Leave(); leaveErr != nil {
		a.logger.Warn("leave room", zap.Error(leaveErr))
	}
	return err
}

// clockLoop keeps the status bar clock and flash expiry current.
func (a *App) clockLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() { a.statusBar.SetFlash(a.flash.Get()) })
		case <-a.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
