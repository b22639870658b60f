package keys

import (
	"sort"

	"github.com/gdamore/tcell/v2"
)

// Action represents a keybinding action.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	Visible     bool
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

type entry struct {
	name   string
	action *Action
}

// Registry holds keybindings by page. Bindings are kept in registration
// order so hints render stably.
type Registry struct {
	global []entry
	pages  map[string][]entry
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string][]entry)}
}

// AddGlobal registers a binding active on every page.
func (r *Registry) AddGlobal(name string, action *Action) {
	r.global = upsert(r.global, name, action)
}

// AddPage registers a binding active on one page.
func (r *Registry) AddPage(page, name string, action *Action) {
	r.pages[page] = upsert(r.pages[page], name, action)
}

func upsert(list []entry, name string, action *Action) []entry {
	for i := range list {
		if list[i].name == name {
			list[i].action = action
			return list
		}
	}
	return append(list, entry{name: name, action: action})
}

// Hints returns visible descriptions for a page, page bindings first.
func (r *Registry) Hints(page string) []string {
	var hints []string
	for _, list := range [][]entry{r.pages[page], r.global} {
		for _, e := range list {
			if e.action.Visible {
				hints = append(hints, e.action.Description)
			}
		}
	}
	return hints
}

// Pages returns the pages that have their own bindings, sorted.
func (r *Registry) Pages() []string {
	out := make([]string, 0, len(r.pages))
	for p := range r.pages {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// HandleEvent dispatches a key event to the first matching action, page
// bindings before global ones. Returns true if a handler ran.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	for _, list := range [][]entry{r.pages[page], r.global} {
		for _, e := range list {
			if e.action.Matches(ev) {
				e.action.Handler()
				return true
			}
		}
	}
	return false
}
