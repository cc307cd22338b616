/*
Package domain contains the core models shared by the extractor, the projector
and the history store.

It is kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Workflow: the canonical form of a workflow file (nodes, links, groups, id watermarks).
  - ProjectedGraph: render-ready descriptors consumed by the external canvas widget.
  - Camera / Viewport: the fit-to-view transform and the surface it targets.
  - HistoryEntry: a previously loaded file, kept as its original JSON text.
*/
package domain
