package dom

import "golang.org/x/net/html"

// Common event types.
const (
	EventInput  = "input"
	EventClick  = "click"
	EventScroll = "scroll"
)

// Event is dispatched to listeners on its target, the target's ancestors and
// finally the window. A nil Target addresses the window directly.
type Event struct {
	Type   string
	Target *html.Node
}

type listener struct {
	id uint64
	fn func(Event)
}

// AddEventListener registers fn for events of typ on target. A nil target is
// the window. The returned function removes the listener.
func (d *Document) AddEventListener(target *html.Node, typ string, fn func(Event)) func() {
	d.lmu.Lock()
	defer d.lmu.Unlock()

	d.nextID++
	l := &listener{id: d.nextID, fn: fn}
	byType, ok := d.listeners[target]
	if !ok {
		byType = make(map[string][]*listener)
		d.listeners[target] = byType
	}
	byType[typ] = append(byType[typ], l)

	return func() { d.removeListener(target, typ, l.id) }
}

func (d *Document) removeListener(target *html.Node, typ string, id uint64) {
	d.lmu.Lock()
	defer d.lmu.Unlock()
	ls := d.listeners[target][typ]
	for i, l := range ls {
		if l.id == id {
			d.listeners[target][typ] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// ListenerCount returns how many listeners of typ are registered on target.
func (d *Document) ListenerCount(target *html.Node, typ string) int {
	d.lmu.Lock()
	defer d.lmu.Unlock()
	return len(d.listeners[target][typ])
}

// Dispatch delivers ev synchronously. Listeners run without the document
// lock held, so they may read or mutate the document.
func (d *Document) Dispatch(ev Event) {
	var path []*html.Node
	d.mu.RLock()
	for n := ev.Target; n != nil; n = n.Parent {
		path = append(path, n)
	}
	d.mu.RUnlock()
	path = append(path, nil)

	var fns []func(Event)
	d.lmu.Lock()
	for _, n := range path {
		for _, l := range d.listeners[n][ev.Type] {
			fns = append(fns, l.fn)
		}
	}
	d.lmu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
