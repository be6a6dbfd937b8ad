package lattice_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// ExampleStudio_Open edits a page through a session and prints each frame.
func ExampleStudio_Open() {
	ctx := context.Background()
	studio := lattice.New(memory.NewStore(), lattice.WithIDGenerator(testutils.SequentialIDs("n")))
	defer studio.Close(ctx)

	surface := ports.SurfaceFunc(func(ctx context.Context, f domain.Frame) error {
		if !f.HighlightOnly {
			fmt.Println(f.Markup)
		}
		return nil
	})

	sess, err := studio.Open(ctx, "landing", surface)
	if err != nil {
		log.Fatal(err)
	}
	defer studio.Release(ctx, sess)

	_ = sess.Ready(ctx)
	id, _ := sess.OnPaletteDrop(ctx, "heading", domain.RootID, 0)
	_ = sess.OnElementTextChanged(ctx, id, "Welcome")

	// Output:
	//
	// <h1 data-node-id="n1">Heading</h1>
	// <h1 data-node-id="n1">Welcome</h1>
}
