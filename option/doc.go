// Package option models a module command line as an ordered list of
// (flag, argument) pairs.
//
// Arguments that name files may instead hold virtual resource names
// produced by the token package; the list itself does not care which.
package option
