package browser

import (
	"fmt"

	"github.com/gopherjs/gopherjs/js"

	"github.com/KikinaStudio/kikiscroll/pkg/scroll"
)

// TriggerEnd is the ScrollTrigger end for a pin lasting pin viewport
// heights, e.g. 1.5 gives "+=150%".
func TriggerEnd(pin float64) string {
	if pin <= 0 {
		pin = scroll.DefaultPin
	}
	return fmt.Sprintf("+=%g%%", pin*100)
}

// BindSections pins every element matching selector with GSAP ScrollTrigger
// and forwards its callbacks to l. The n-th match is section n. It returns
// the number of sections bound.
//
// Callbacks reach l synchronously so their order is kept; l must not block.
func BindSections(selector string, pin float64, l scroll.Listener) (int, error) {
	gsap := js.Global.Get("gsap")
	st := js.Global.Get("ScrollTrigger")
	if gsap == js.Undefined || st == js.Undefined {
		return 0, fmt.Errorf("gsap ScrollTrigger is not loaded")
	}
	gsap.Call("registerPlugin", st)

	nodes := js.Global.Get("document").Call("querySelectorAll", selector)
	n := nodes.Length()
	for i := 0; i < n; i++ {
		section := i
		st.Call("create", map[string]any{
			"trigger": nodes.Index(i),
			"start":   "top top",
			"end":     TriggerEnd(pin),
			"pin":     true,
			"onEnter": func() {
				l.OnEnter(section)
			},
			"onLeave": func() {
				l.OnLeave(section)
			},
			"onLeaveBack": func() {
				l.OnLeaveBack(section)
			},
			"onUpdate": func(self *js.Object) {
				p := self.Get("progress").Float()
				l.OnSectionProgress(section, p)
			},
		})
	}

	// Global progress drives the shader scroll uniform.
	st.Call("create", map[string]any{
		"start": 0,
		"end":   "max",
		"onUpdate": func(self *js.Object) {
			p := self.Get("progress").Float()
			l.OnScroll(p)
		},
	})
	return n, nil
}

// OnClick runs fn in a goroutine whenever the element with id is clicked.
func OnClick(id string, fn func()) bool {
	el := js.Global.Get("document").Call("getElementById", id)
	if el == nil || el == js.Undefined {
		return false
	}
	el.Call("addEventListener", "click", func(event *js.Object) {
		event.Call("preventDefault")
		go fn()
	})
	return true
}
