// Package compiler implements the v3d backend compilation context and
// its IR lowering passes.
//
// The central pass here is LowerIO, which rewrites the architecture
// neutral I/O intrinsics produced by a front end into the Vertex Pipe
// Memory (VPM) protocol read by the fixed-function hardware that sits
// between the last geometry stage and the rasterizer:
//
//   - Vertex and geometry output stores become VPM writes at slot
//     addresses computed from the consuming stage's used-outputs table.
//   - The fixed-function outputs the rasterizer reads directly
//     (position, viewport-space XY, depth, 1/W, point size) are derived
//     and appended once per vertex.
//   - Geometry shaders additionally thread per-vertex header state
//     through the program and patch the output header on exit.
//   - Uniform load offsets are rescaled to byte granularity, and small
//     per-stage input fixups (attribute channel swap, point-coordinate
//     derivation) are applied.
//
// Each compilation owns a fresh Compile context; the pass is a single
// synchronous walk with no state shared across invocations.
package compiler
