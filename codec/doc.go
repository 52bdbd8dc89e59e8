// Package codec reads and writes whole payloads to files and streams.
//
// Datasets use the text table layout understood by the record package,
// documents are plain lines, and the remaining families are stored as YAML.
// Register replaces the codec for a family.
package codec
