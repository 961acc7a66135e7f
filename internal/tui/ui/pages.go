package ui

import "github.com/rivo/tview"

// Pages is a stack of components on top of tview.Pages. Components are
// registered once under an id and pushed or popped by id.
type Pages struct {
	*tview.Pages
	components map[string]Component
	stack      []string
	onChange   func(names []string)
}

// NewPages creates an empty page stack.
func NewPages() *Pages {
	return &Pages{
		Pages:      tview.NewPages(),
		components: make(map[string]Component),
	}
}

// Add registers a hidden page.
func (p *Pages) Add(id string, c Component) {
	p.components[id] = c
	p.AddPage(id, c, true, false)
}

// SetOnChange sets a callback that fires with the component names of the
// stack whenever it changes.
func (p *Pages) SetOnChange(fn func(names []string)) {
	p.onChange = fn
}

// Push shows id on top of the stack. Pushing the current page is a no-op,
// and pushing a page already lower in the stack unwinds back to it.
func (p *Pages) Push(id string) {
	if p.Current() == id {
		return
	}
	for i, s := range p.stack {
		if s == id {
			p.HidePage(p.Current())
			p.stack = p.stack[:i+1]
			p.show(id)
			return
		}
	}
	if cur := p.Current(); cur != "" {
		p.HidePage(cur)
	}
	p.stack = append(p.stack, id)
	p.show(id)
}

// Pop removes the top page unless it is the root and returns the new top.
func (p *Pages) Pop() string {
	if len(p.stack) <= 1 {
		return p.Current()
	}
	p.HidePage(p.Current())
	p.stack = p.stack[:len(p.stack)-1]
	cur := p.Current()
	p.show(cur)
	return cur
}

// Current returns the id of the top page.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Top returns the component on top of the stack.
func (p *Pages) Top() Component {
	return p.components[p.Current()]
}

// Reset clears the stack down to id.
func (p *Pages) Reset(id string) {
	for _, s := range p.stack {
		p.HidePage(s)
	}
	p.stack = []string{id}
	p.show(id)
}

// Depth returns the number of pages on the stack.
func (p *Pages) Depth() int {
	return len(p.stack)
}

func (p *Pages) show(id string) {
	p.ShowPage(id)
	p.SendToFront(id)
	if p.onChange == nil {
		return
	}
	names := make([]string, 0, len(p.stack))
	for _, s := range p.stack {
		if c, ok := p.components[s]; ok {
			names = append(names, c.Name())
		}
	}
	p.onChange(names)
}
