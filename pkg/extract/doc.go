// Package extract turns user-supplied files into canonical workflows.
//
// Two inputs are understood, dispatched by filename extension only:
//
//   - .json: the workflow text itself.
//   - .png: an image whose tEXt chunk ("workflow" or "parameters") carries
//     the workflow, optionally wrapped in a "prompt" field.
//
// PNG candidates are re-serialized and decoded through the JSON path, so
// both origins receive identical handling.
package extract
