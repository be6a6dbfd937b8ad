/*
Package dsl provides a Go DSL for programmatically constructing Lattice pages
and palettes.

It allows developers to describe element trees with a fluent builder instead
of hand-writing the JSON document format. This is particularly useful for
seeding projects, unit testing and generating palettes in code.

Example usage:

	package main

	import (
		"github.com/aretw0/lattice/pkg/dsl"
	)

	func main() {
		palette := dsl.New()

		palette.Add("hero").
			Label("Hero").
			Category("Layout").
			Root(dsl.El("section").Style("padding", "48px").Children(
				dsl.El("h1").Text("Big title"),
				dsl.El("a").Attr("href", "#signup").Text("Get started"),
			))

		// The resulting loader can be used as a ports.PaletteLoader
		loader, _ := palette.Build()
		// ... pass loader to lattice.WithPalette(registry.Builtin(loader))
	}
*/
package dsl
