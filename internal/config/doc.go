// Package config supplies module configuration to the module manager.
//
// The manager only understands one field per module, the enabled flag.
// Everything else in a module's settings payload is opaque to the core
// and passed through untouched. Store persists the configuration as a
// single JSON document on disk, read with gjson and updated with sjson,
// and announces saves on the event bus so modules can react without
// knowing who changed what.
package config
