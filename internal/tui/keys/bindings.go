// Package keys maps key events to actions, per page and globally.
package keys

import (
	"github.com/gdamore/tcell/v2"
	"github.com/vibein/vibechat/internal/tui/ui"
)

// Action is one keybinding. Label is the key as shown in the menu; an
// action without Description is active but not listed.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Label       string
	Description string
	Numeric     bool
	Handler     func()
}

// Matches reports whether ev triggers the action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Registry holds keybindings in registration order.
type Registry struct {
	global []*Action
	views  map[string][]*Action
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[string][]*Action)}
}

// AddGlobal registers a binding active on every page.
func (r *Registry) AddGlobal(a *Action) {
	r.global = append(r.global, a)
}

// AddView registers a binding for one page.
func (r *Registry) AddView(view string, a *Action) {
	r.views[view] = append(r.views[view], a)
}

// Hints returns the menu entries for a page: its own bindings first, then
// the global ones.
func (r *Registry) Hints(view string) []ui.MenuHint {
	var hints []ui.MenuHint
	for _, list := range [][]*Action{r.views[view], r.global} {
		for _, a := range list {
			if a.Description == "" {
				continue
			}
			hints = append(hints, ui.MenuHint{Key: a.Label, Description: a.Description, Numeric: a.Numeric})
		}
	}
	return hints
}

// HandleEvent runs the first action matching ev, page bindings before global
// ones, and reports whether one ran.
func (r *Registry) HandleEvent(view string, ev *tcell.EventKey) bool {
	for _, list := range [][]*Action{r.views[view], r.global} {
		for _, a := range list {
			if a.Matches(ev) {
				a.Handler()
				return true
			}
		}
	}
	return false
}

// Rune builds an action bound to a printable key.
func Rune(r rune, description string, fn func()) *Action {
	return &Action{Key: tcell.KeyRune, Rune: r, Label: string(r), Description: description, Handler: fn}
}

// Key builds an action bound to a special key.
func Key(k tcell.Key, description string, fn func()) *Action {
	label := tcell.KeyNames[k]
	return &Action{Key: k, Label: label, Description: description, Handler: fn}
}
