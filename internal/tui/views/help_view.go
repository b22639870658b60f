package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/iboybrian/atitlan-vibes/internal/chat"
	"github.com/iboybrian/atitlan-vibes/internal/tui/ui"
)

// NewHelpView creates the key and command reference page.
func NewHelpView(theme *ui.Theme) *tview.TextView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	k := ui.Tag(theme.KeyColor)
	_, _ = fmt.Fprintf(tv, `
  [::b]Keys[-:-:-]
    %[1]si[-]        compose
    %[1]sEnter[-]    send
    %[1]sEsc[-]      cancel reply / back
    %[1]s:[-]        command
    %[1]s?[-]        this help
    %[1]sq[-]        leave the room

  [::b]Commands[-:-:-]
    %[1]s:reply N[-]          reply to message N
    %[1]s:react N EMOJI[-]    toggle a reaction on message N
    %[1]s:react N[-]          list the reaction palette
    %[1]s:invite[-]           show the room's invite QR
    %[1]s:quit[-]             leave the room

  [::b]Palette[-:-:-]  %[2]s
`, k, tview.Escape(strings.Join(chat.EmojiOptions, " ")))
	return tv
}
