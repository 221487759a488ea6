package browser

import (
	"encoding/json"

	"github.com/gopherjs/gopherjs/js"

	"github.com/KikinaStudio/kikiscroll/pkg/director"
	"github.com/KikinaStudio/kikiscroll/pkg/engine"
)

// VisualHook returns a renderer that hands every frame, as a plain JS
// object, to the global function named name (for the three.js scene).
// Frames are dropped while the function is not defined.
func VisualHook(name string) engine.Renderer {
	return engine.RendererFunc(func(f director.Frame) {
		fn := js.Global.Get(name)
		if fn == js.Undefined || fn.Get("call") == js.Undefined {
			return
		}
		if obj := toJS(f); obj != nil {
			fn.Invoke(obj)
		}
	})
}

// toJS converts v through JSON so field names match the WebSocket protocol.
func toJS(v any) *js.Object {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return js.Global.Get("JSON").Call("parse", string(raw))
}

// Export publishes the engine controls as window[name].
func Export(name string, eng *engine.Engine, toggleCamera func()) {
	js.Global.Set(name, map[string]any{
		"start": func() {
			eng.Start()
		},
		"camera": func() {
			go toggleCamera()
		},
		"snapshot": func() *js.Object {
			return toJS(eng.Snapshot())
		},
		"frame": func() *js.Object {
			return toJS(eng.Frame())
		},
	})
}
