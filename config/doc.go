// Package config loads broker settings from YAML with environment
// overrides.
//
//	session:
//	  name: broker
//	  pad: 2
//	log:
//	  level: info
//	records:
//	  columns: 0
//	  comment_marker: "#"
//	  segment_marker: ">"
//	  gap: {column: 0, threshold: 0}
//	modules:
//	  search_path: [/usr/lib/broker]
//	  preload: []
//
// BROKER_MODULE_PATH replaces modules.search_path and BROKER_LOG_LEVEL
// replaces log.level.
package config
