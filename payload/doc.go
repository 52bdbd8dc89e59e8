// Package payload defines the data objects exchanged between modules.
//
// Each Family has exactly one concrete type implementing Payload:
//
//	FamilyDataset   *Dataset   tables of numeric records with headers and segments
//	FamilyGrid      *Grid      regular 2-D lattice
//	FamilyPalette   *Palette   color table
//	FamilyMatrix    *Matrix    dense 2-D array
//	FamilyVector    *Vector    equal-length columns
//	FamilyImage     *Image     8-bit multiband raster
//	FamilyDocument  *Document  free-form text
//
// The interface is sealed, so a type switch over these seven types is
// exhaustive.
package payload
