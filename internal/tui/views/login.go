package views

import (
	"github.com/matheus3301/tabsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// LoginForm collects an identifier and password.
type LoginForm struct {
	*tview.Form
	onSubmit func(identifier, password string)
}

// NewLoginForm creates the login form.
func NewLoginForm(theme *ui.Theme) *LoginForm {
	lf := &LoginForm{Form: tview.NewForm()}
	lf.AddInputField("Username or email", "", 32, nil, nil).
		AddPasswordField("Password", "", 32, '*', nil).
		AddButton("Login", lf.submit)
	lf.SetBorder(true).SetTitle(" Login ")
	lf.SetBorderColor(theme.BorderColor)
	lf.SetTitleColor(theme.TitleColor)
	return lf
}

// SetOnSubmit sets the callback run when Login is pressed.
func (lf *LoginForm) SetOnSubmit(fn func(identifier, password string)) {
	lf.onSubmit = fn
}

// Reset clears the fields.
func (lf *LoginForm) Reset() {
	lf.GetFormItem(0).(*tview.InputField).SetText("")
	lf.GetFormItem(1).(*tview.InputField).SetText("")
	lf.SetFocus(0)
}

func (lf *LoginForm) submit() {
	identifier := lf.GetFormItem(0).(*tview.InputField).GetText()
	password := lf.GetFormItem(1).(*tview.InputField).GetText()
	if lf.onSubmit != nil && identifier != "" && password != "" {
		lf.onSubmit(identifier, password)
	}
}
