package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/scrape/internal/engine"
)

// ScriptTimeout bounds the total time spent evaluating a page's scripts.
const ScriptTimeout = 2 * time.Second

// ScriptState evaluates the page's inline scripts in a bare JS runtime and
// returns the globals they assign, such as window.__INITIAL_STATE__. With
// names, only those globals are returned and ErrNoData is reported when none
// of them was set. Scripts that fail for lack of a DOM are skipped.
func ScriptState(doc *goquery.Document, pageURL string, names ...string) (map[string]any, error) {
	vm := goja.New()

	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	location := map[string]any{"href": pageURL}
	vm.Set("location", location)
	vm.Set("document", map[string]any{"location": location})
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	vm.Set("console", map[string]any{"log": noop, "warn": noop, "error": noop})

	baseline := make(map[string]bool)
	for _, k := range vm.GlobalObject().Keys() {
		baseline[k] = true
	}

	timer := time.AfterFunc(ScriptTimeout, func() {
		vm.Interrupt("script timeout")
	})
	defer timer.Stop()

	ran, failed := 0, 0
	doc.Find("script").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if _, external := sel.Attr("src"); external {
			return true
		}
		if typ, ok := sel.Attr("type"); ok && !isJSType(typ) {
			return true
		}
		src := strings.TrimSpace(sel.Text())
		if src == "" {
			return true
		}

		ran++
		if _, err := vm.RunString(src); err != nil {
			if _, interrupted := err.(*goja.InterruptedError); interrupted {
				log.Warn().Str("url", pageURL).Msg("Inline script evaluation timed out")
				return false
			}
			failed++
		}
		return true
	})

	log.Debug().
		Str("url", pageURL).
		Int("scripts", ran).
		Int("failed", failed).
		Msg("Inline scripts evaluated")

	state := make(map[string]any)
	if len(names) > 0 {
		for _, name := range names {
			if v := vm.Get(name); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
				state[name] = v.Export()
			}
		}
		if len(state) == 0 {
			return nil, fmt.Errorf("%w: none of %v assigned", engine.ErrNoData, names)
		}
		return state, nil
	}

	for _, k := range vm.GlobalObject().Keys() {
		if baseline[k] {
			continue
		}
		v := vm.Get(k)
		if v == nil || goja.IsUndefined(v) {
			continue
		}
		if _, isFunc := goja.AssertFunction(v); isFunc {
			continue
		}
		state[k] = v.Export()
	}
	return state, nil
}

func isJSType(typ string) bool {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "", "text/javascript", "application/javascript", "module":
		return true
	}
	return false
}
