package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/iboybrian/atitlan-vibes/internal/tui/model"
	"github.com/iboybrian/atitlan-vibes/internal/tui/ui"
)

// StatusBar displays the profile, room state and transient flashes.
type StatusBar struct {
	*tview.TextView
	theme   *ui.Theme
	profile string
	user    string
	state   string
	sending int
	hints   []string
	flash   string
	level   model.Level
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	return &StatusBar{TextView: tv, theme: theme}
}

// SetProfile updates the profile and user shown on the left.
func (sb *StatusBar) SetProfile(profile, user string) {
	sb.profile, sb.user = profile, user
	sb.render()
}

// SetState updates the controller state display.
func (sb *StatusBar) SetState(state string) {
	sb.state = state
	sb.render()
}

// SetSending updates the in-flight send counter.
func (sb *StatusBar) SetSending(n int) {
	sb.sending = n
	sb.render()
}

// SetHints sets the key hints.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string, level model.Level) {
	sb.flash, sb.level = msg, level
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, sb.line(time.Now()))
}

func (sb *StatusBar) line(now time.Time) string {
	who := sb.profile
	if sb.user != "" {
		who += "/" + sb.user
	}
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s", tview.Escape(who), sb.state)
	if sb.sending > 0 {
		line += fmt.Sprintf(" [green]sending %d[-]", sb.sending)
	}
	line += " | " + now.Format("15:04")
	if len(sb.hints) > 0 {
		line += " | " + ui.Tag(sb.theme.KeyColor) + tview.Escape(strings.Join(sb.hints, " ")) + "[-]"
	}
	if sb.flash != "" {
		color := sb.theme.FlashInfoColor
		switch sb.level {
		case model.Warn:
			color = sb.theme.FlashWarnColor
		case model.Err:
			color = sb.theme.FlashErrColor
		}
		line += " | " + ui.Tag(color) + tview.Escape(sb.flash) + "[-]"
	}
	return line
}
