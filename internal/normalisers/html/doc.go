// Package html provides a Normaliser for HTML files. Scripts, styles and
// markup are removed and block elements become paragraph breaks.
package html
