// Package textutil sanitizes titles into filesystem-safe names for subtitle
// output and lock files.
package textutil
