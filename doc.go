// Package databroker moves data between a calling program and processing
// modules without either side knowing how the other stores it.
//
// A caller opens a session, registers its data as objects (files, open
// streams, descriptors or in-memory payloads), and passes them to modules
// by name or by a short text token. Modules read and write through the
// session, either whole payloads at once or record by record.
//
// # Packages
//
//	databroker/
//	├── session/    Session lifecycle, tokens, record and whole-payload I/O
//	├── module/     Module registry, dispatch, WebAssembly modules, metrics
//	├── builtin/    Modules compiled into the broker
//	├── resource/   Object table and ownership of registered data
//	├── payload/    Data families: datasets, grids, palettes, arrays, text
//	├── record/     Table text classification, readers and sinks
//	├── codec/      Whole-payload encoders and decoders per family
//	├── option/     Command-line option lists
//	├── token/      Object token encoding
//	├── config/     YAML configuration with environment overrides
//	├── errors/     Structured error types
//	└── cmd/broker  Command-line front end
//
// # Quick Start
//
//	reg := module.NewRegistry()
//	if err := builtin.Register(reg); err != nil {
//		return err
//	}
//	s, err := session.New("example", session.WithModules(reg))
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	status, err := s.CallModule(ctx, "info", module.ModeRun, "table.txt -C")
//
// # Error Handling
//
// Errors are *errors.Error values carrying a phase and a kind:
//
//	if errors.IsKind(err, errors.KindModuleNotFound) {
//		// ...
//	}
package databroker
