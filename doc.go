/*
Package graphlens reads node-graph workflows out of JSON files and PNG
images and projects them into a renderer-neutral graph for a viewer.

# Concept

A workflow goes through two stages. Extraction (package extract) turns a
raw .json or .png file into a canonical Workflow, recovering the JSON from
PNG tEXt chunks or, failing that, from the raw image bytes. Projection
(package projection) turns a Workflow into a ProjectedGraph: node boxes
with resolved sizes and slots, note text wrapped to its box, links checked
against their endpoints, and a camera fitted to the viewport.

The Viewer ties the two together, remembers every file it has loaded in a
HistoryStore and tracks the graph currently on screen.

# Usage

	viewer := graphlens.New(
		graphlens.WithLogger(logger),
		graphlens.WithViewport(domain.Viewport{Width: 1920, Height: 1080}),
	)

	data, _ := os.ReadFile("portrait.png")
	snap, err := viewer.Load(ctx, "portrait.png", data)
	if err != nil {
		// errors.Is(err, domain.ErrNoWorkflowFound) and friends
	}
	fmt.Println(len(snap.Graph.Nodes), snap.Graph.Camera.Scale)

History is in memory unless another store is supplied with WithStore; see
pkg/adapters for file, redis and sqlite stores and pkg/persistence/middleware
for compression and encryption.
*/
package graphlens
