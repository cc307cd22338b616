// Package projection converts canonical workflows into render-ready graphs.
//
// The projector resolves every default in one place: node sizes and colors,
// port types and colors, read-only widgets, Note text boxes, node tags, group
// title bars, the link table and the fit-to-view camera. External renderers
// consume the resulting domain.ProjectedGraph without further lookups.
package projection
