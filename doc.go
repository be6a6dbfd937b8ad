/*
Package lattice is the document core of a visual page builder.

It keeps an edited page as a tree of element nodes, applies structural edits
coming from a rendering surface (a browser canvas, a WebSocket client, an AI
agent), renders the tree back to markup and saves it through a pluggable
store.

# Concept

Every open project is owned by a single bridge session. The session runs one
control goroutine: surface messages are applied in arrival order, so the
tree is never touched concurrently. After each change the session paints a
full frame (markup plus a highlight directive). Drag moves arrive in bursts
and are painted once, after a short quiet period. Saves go through a
persistence gate that serializes the snapshot on the control goroutine and
writes it asynchronously, coalescing bursts of edits into one write.

# Key Features

  - Single Writer: all edits of a project flow through one goroutine.
  - Full Frames: the surface replaces its markup, it never patches it.
  - Debounced Moves: a drag of a hundred moves costs one render.
  - Pluggable Storage: memory, files, Redis and SQLite stores share one contract.
  - Palette: built-in templates plus user templates loaded from a Loam vault.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/lattice"
		"github.com/aretw0/lattice/pkg/adapters/memory"
		"github.com/aretw0/lattice/pkg/domain"
		"github.com/aretw0/lattice/pkg/ports"
	)

	func main() {
		ctx := context.Background()
		studio := lattice.New(memory.NewStore())
		defer studio.Close(ctx)

		surface := ports.SurfaceFunc(func(ctx context.Context, f domain.Frame) error {
			fmt.Println(f.Markup)
			return nil
		})

		sess, err := studio.Open(ctx, "landing", surface)
		if err != nil {
			log.Fatal(err)
		}
		defer studio.Release(ctx, sess)

		// Nothing is painted until the surface says it is ready.
		_ = sess.Ready(ctx)
		id, _ := sess.OnPaletteDrop(ctx, "heading", domain.RootID, 0)
		_ = sess.OnElementTextChanged(ctx, id, "Welcome")
	}
*/
package lattice
