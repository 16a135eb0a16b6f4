package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/modq/internal/tui/ui"
)

// LoginView asks for backend credentials.
type LoginView struct {
	*tview.Form
	theme    *ui.Theme
	onSubmit func(username, password string)
}

// NewLoginView creates the login page.
func NewLoginView(theme *ui.Theme) *LoginView {
	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetFieldBackgroundColor(tcell.ColorDarkSlateGray)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.BorderColor)
	form.SetTitle(" Login required ")
	form.SetTitleColor(theme.TitleColor)

	lv := &LoginView{Form: form, theme: theme}
	form.AddInputField("Username", "", 32, nil, nil)
	form.AddPasswordField("Password", "", 32, '*', nil)
	form.AddButton("Login", lv.submit)
	return lv
}

// SetOnSubmit sets the callback run when Login is pressed.
func (lv *LoginView) SetOnSubmit(fn func(username, password string)) {
	lv.onSubmit = fn
}

// Reset clears the password and moves focus back to the first field.
func (lv *LoginView) Reset(username string) {
	lv.GetFormItemByLabel("Username").(*tview.InputField).SetText(username)
	lv.GetFormItemByLabel("Password").(*tview.InputField).SetText("")
	lv.SetFocus(0)
	if username != "" {
		lv.SetFocus(1)
	}
}

func (lv *LoginView) submit() {
	user := lv.GetFormItemByLabel("Username").(*tview.InputField).GetText()
	pass := lv.GetFormItemByLabel("Password").(*tview.InputField).GetText()
	if lv.onSubmit != nil && user != "" {
		lv.onSubmit(user, pass)
	}
}
