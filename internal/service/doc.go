// Package service provides a small hierarchical service container.
//
// A container holds named services; a child container inherits lookups
// from its parent while keeping its own registrations isolated. Module
// loading builds one child per module so a module's services disappear
// with it: disposing a container closes every service registered
// directly in it, in reverse registration order, without touching the
// parent.
package service
