// Package module holds the module registry and dispatcher.
//
// Modules are registered as Descriptors naming their entry point and the
// option flags whose arguments refer to data objects. Registry.Call looks a
// module up, binds keyed arguments (virtual tokens to existing objects,
// paths to temporary file objects) and invokes the entry.
//
// Modules missing from the registry are looked up as <name>.wasm on the
// search path and run with wazero. A dynamic module exports
//
//	broker_<name>(mode i32) -> i32
//
// and may import the scalar functions of the "broker" host module:
// option_count, binding_count, binding_id, begin_io, end_io, get_record,
// field_count, field, set_field, put_data and echo_record.
package module
