// Package normalisers turns files into document text before indexing.
// Each normaliser handles a set of file extensions; the Registry picks one
// per file and builds the hashed document.
package normalisers
