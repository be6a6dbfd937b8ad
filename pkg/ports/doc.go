/*
Package ports defines the driven ports (interfaces) of the Lattice engine.

These interfaces decouple the document core from external implementations,
allowing sessions to work with various storage backends, palette sources,
rendering surfaces and timers.

# Key Interfaces

  - ProjectStore: persists and loads project records.
  - DistributedLocker: coordinates project access across replicas.
  - Surface: receives rendered frames (the script-driven canvas).
  - Notifier: shows transient success and error messages to the user.
  - Clock: schedules the debounce timers of renders and saves.
  - PaletteLoader: provides the component templates of the palette.
*/
package ports
