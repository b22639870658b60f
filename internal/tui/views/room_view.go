package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/iboybrian/atitlan-vibes/internal/tui/model"
	"github.com/iboybrian/atitlan-vibes/internal/tui/ui"
)

// RoomView displays the messages of the open room.
type RoomView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewRoomView creates a new room view.
func NewRoomView(theme *ui.Theme) *RoomView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Town Chat ")
	tv.SetTitleColor(theme.TitleColor)
	return &RoomView{TextView: tv, theme: theme}
}

// SetRoomName updates the title.
func (rv *RoomView) SetRoomName(name string) {
	rv.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(name))))
}

// ShowLoading replaces the content with a loading hint.
func (rv *RoomView) ShowLoading() {
	rv.Clear()
	_, _ = fmt.Fprintf(rv, "\n  %sLoading messages...[-]", ui.Tag(rv.theme.DimColor))
}

// Update renders lines and scrolls to the newest message.
func (rv *RoomView) Update(lines []model.Line) {
	rv.Clear()
	_, _ = fmt.Fprint(rv, Render(lines, rv.theme))
	rv.ScrollToEnd()
}

// Render formats lines as tview markup.
func Render(lines []model.Line, theme *ui.Theme) string {
	dim := ui.Tag(theme.DimColor)
	if len(lines) == 0 {
		return fmt.Sprintf("\n  No messages yet!\n  %sBe the first to say something 👋[-]\n", dim)
	}

	var b strings.Builder
	for _, l := range lines {
		sender := ui.Tag(theme.SenderColor)
		if l.Mine {
			sender = ui.Tag(theme.MineColor)
		}
		fmt.Fprintf(&b, "%s%3d[-] %s[::b]%s[-:-:-] %s%s[-]\n",
			dim, l.Index, sender, esc(l.Sender), dim, l.Time)
		if l.Reply != nil {
			fmt.Fprintf(&b, "    %s│ %s: %s[-]\n", dim, esc(l.Reply.Sender), esc(l.Reply.Text))
		}
		fmt.Fprintf(&b, "    %s\n", esc(l.Text))
		if len(l.Reactions) > 0 {
			b.WriteString("    ")
			for _, c := range l.Reactions {
				color := theme.ChipColor
				if c.Mine {
					color = theme.ChipMineColor
				}
				fmt.Fprintf(&b, "%s%s[-] ", ui.Tag(color), esc(fmt.Sprintf("[%s %d]", c.Emoji, c.Count)))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func esc(s string) string {
	return tview.Escape(sanitizeForTerminal(s))
}
