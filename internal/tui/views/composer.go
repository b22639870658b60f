package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iboybrian/atitlan-vibes/internal/tui/model"
	"github.com/iboybrian/atitlan-vibes/internal/tui/ui"
)

// Composer is the reply bar plus the text input for sending messages.
type Composer struct {
	*tview.Flex
	input   *tview.InputField
	reply   *tview.TextView
	theme   *ui.Theme
	onSend  func(text string)
	onEdit  func(text string)
	onClear func()
}

// NewComposer creates a new message composer.
func NewComposer(theme *ui.Theme) *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetPlaceholder("Type a message...").
		SetFieldWidth(0)
	input.SetBorder(true)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.KeyColor)

	reply := tview.NewTextView().SetDynamicColors(true)
	reply.SetBackgroundColor(theme.BgColor)

	c := &Composer{
		Flex:  tview.NewFlex().SetDirection(tview.FlexRow),
		input: input,
		reply: reply,
		theme: theme,
	}
	c.layout(false)

	input.SetChangedFunc(func(text string) {
		if c.onEdit != nil {
			c.onEdit(text)
		}
	})
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			if text := input.GetText(); text != "" && c.onSend != nil {
				c.onSend(text)
			}
		case tcell.KeyEscape:
			if c.onClear != nil {
				c.onClear()
			}
		}
	})
	return c
}

func (c *Composer) layout(withReply bool) {
	c.Clear()
	if withReply {
		c.AddItem(c.reply, 1, 0, false)
	}
	c.AddItem(c.input, 3, 0, true)
}

// Height is the number of rows the composer needs.
func (c *Composer) Height() int {
	if c.reply.GetText(false) != "" {
		return 4
	}
	return 3
}

// SetOnSend sets the callback when Enter is pressed on non-empty input.
func (c *Composer) SetOnSend(fn func(text string)) { c.onSend = fn }

// SetOnEdit sets the callback for every edit of the draft.
func (c *Composer) SetOnEdit(fn func(text string)) { c.onEdit = fn }

// SetOnCancel sets the callback for Esc inside the input.
func (c *Composer) SetOnCancel(fn func()) { c.onClear = fn }

// Input returns the input field (for focus management).
func (c *Composer) Input() *tview.InputField { return c.input }

// SetText replaces the draft shown in the input.
func (c *Composer) SetText(text string) { c.input.SetText(text) }

// SetReply shows or hides the "Replying to" bar.
func (c *Composer) SetReply(p *model.ReplyPreview) {
	c.reply.Clear()
	if p == nil {
		c.layout(false)
		return
	}
	_, _ = fmt.Fprintf(c.reply, " %s↩ Replying to [::b]%s[::-][-] %s%s[-]  %s(Esc to cancel)[-]",
		ui.Tag(c.theme.MineColor), esc(p.Sender),
		ui.Tag(c.theme.DimColor), esc(p.Text),
		ui.Tag(c.theme.DimColor))
	c.layout(true)
}
