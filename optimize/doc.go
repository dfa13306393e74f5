// Package optimize shrinks WebAssembly modules after a contract build.
//
// Shrink computes the closure of functions, globals, types, tables,
// memories, and segments reachable from a set of exported entrypoints,
// drops everything else, and renumbers the surviving index spaces.
// StripMetadata clears custom sections (name, producers, linking) so the
// deployed artifact carries code only.
//
// The optimizer mutates the parsed module in place; callers serialize the
// result with Module.Encode once the whole pass has succeeded.
package optimize
