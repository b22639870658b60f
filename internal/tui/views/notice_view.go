package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/iboybrian/atitlan-vibes/internal/invite"
	"github.com/iboybrian/atitlan-vibes/internal/tui/ui"
)

// NoticeView is a full-page notice: the login prompt, a room error or the
// invite QR code.
type NoticeView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewNoticeView creates a new notice view.
func NewNoticeView(theme *ui.Theme) *NoticeView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitleColor(theme.TitleColor)
	return &NoticeView{TextView: tv, theme: theme}
}

// ShowLogin tells the user how to identify themselves.
func (nv *NoticeView) ShowLogin(profile string) {
	nv.SetTitle(" Log In ")
	nv.Clear()
	_, _ = fmt.Fprintf(nv, "\n\nYou need to be logged in to access the chat.\n\n"+
		"%sSet user_id in ~/.atitlan/config.toml, export ATITLAN_USER_ID\nor run: vibes --profile %s --user <id> <town>[-]",
		ui.Tag(nv.theme.DimColor), tview.Escape(profile))
}

// ShowInvite renders the town chat invite link as a QR code.
func (nv *NoticeView) ShowInvite(townName, townID string) {
	link := invite.Link(townID)
	nv.SetTitle(" Invite ")
	nv.Clear()
	qr, err := invite.RenderQR(link, "")
	if err != nil {
		_, _ = fmt.Fprintf(nv, "\n\n%s", tview.Escape(err.Error()))
		return
	}
	_, _ = fmt.Fprintf(nv, "\nScan to join %s:\n\n%s\n%s%s[-]",
		tview.Escape(townName), qr, ui.Tag(nv.theme.DimColor), tview.Escape(link))
}

// ShowMessage displays a status message.
func (nv *NoticeView) ShowMessage(title, msg string) {
	nv.SetTitle(fmt.Sprintf(" %s ", title))
	nv.Clear()
	_, _ = fmt.Fprintf(nv, "\n\n%s", tview.Escape(msg))
}
