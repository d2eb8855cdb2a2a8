// Package render draws a stored graph as a node-link diagram.
//
// [ToDOT] walks the elements visible to a set of authorizations and emits
// Graphviz DOT source: one box per vertex labelled with its id and concept,
// one arrow per edge labelled with its edge label. [RenderSVG] lays the DOT
// out in-process with [github.com/goccy/go-graphviz].
//
// [Renderer] combines the two and caches the output bytes by a hash of the
// DOT source, so an unchanged graph is laid out once:
//
//	r := render.NewRenderer(cache.Instrumented(fc), nil)
//	svg, hit, err := r.Render(ctx, store, auths, render.FormatSVG, render.Options{})
package render
