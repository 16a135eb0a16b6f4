// Package ui holds the reusable widgets of the dashboard shell: header
// panels, the prompt, the flash line and the page stack.
package ui

// MenuHint describes a keyboard shortcut for display in the menu panel.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // tab switches, drawn in a different color
}

// Component is the lifecycle interface of a page. Refresh is called on the
// UI goroutine whenever the dashboard state it renders may have changed.
type Component interface {
	Name() string
	Refresh()
	Hints() []MenuHint
}
