// Package record classifies table streams one record at a time.
//
// Text lines become records by these rules:
//
//	blank line                  skipped
//	#text                       KindTableHeader
//	>text                       KindSegmentHeader
//	n1 n2 ... nN [tail...]      KindData with N fields and optional text tail
//	anything else               KindInvalid carrying the raw line
//
// Fields are separated by blanks, tabs or commas. A Reader chains several
// sub-sources (files, streams, in-memory tables) and adds the end markers
// KindEndOfSubSource and KindEndOfSet. Sinks do the reverse for outputs.
package record
