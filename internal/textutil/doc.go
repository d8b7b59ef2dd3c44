// Package textutil holds small helpers for turning user-supplied names
// into filesystem-safe strings, used by bundle and manifest file naming.
package textutil
