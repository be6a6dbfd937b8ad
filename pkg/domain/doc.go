/*
Package domain contains the core document model of the Lattice page builder.

It defines the entities edited by a session: Nodes, the Tree (an ordered forest
of root Nodes), the wire codec used by the rendering surface and the records
persisted by project stores. This package is kept pure and free of I/O,
following Hexagonal Architecture principles.

# Key Entities

  - Node: a single document element (tag, text, styles, attributes, children).
  - Tree: the forest of roots; owns lookup, traversal and serialization.
  - Frame: what the host should paint (markup plus a highlight directive).
  - Project: the persisted record wrapping a serialized Tree.
*/
package domain
