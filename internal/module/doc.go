// Package module implements the module catalog and lifecycle.
//
// A Registry holds descriptors for every module the host knows about,
// loaded or not, and computes a dependency-respecting load order. A
// Manager owns the set of live module instances: it loads and unloads
// individual modules, cascades unloads to dependents, and reconciles
// the live set against an enabled/disabled configuration.
//
// Modules are registered explicitly through descriptors carrying a
// factory function; there is no scanning or reflection-based discovery.
// Construction is two-phase: the inert descriptor creates the instance,
// and the instance receives its Runtime (scoped services, bus, config,
// resolved dependencies) at Initialize.
package module
