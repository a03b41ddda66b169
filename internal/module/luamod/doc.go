// Package luamod loads modules implemented as Lua scripts.
//
// A script module is a directory holding a manifest.json with the
// module's identity and dependencies, and a Lua file exposing optional
// initialize, draw_ui, draw_config, and dispose functions. Script
// modules plug into the same registry and manager as native modules, so
// behavior can ship without recompiling the host.
//
// gopher-lua states are not goroutine-safe. All calls into a script go
// through the module lifecycle, which the manager serializes, so the
// state never sees concurrent access.
package luamod
