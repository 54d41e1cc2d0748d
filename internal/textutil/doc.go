// Package textutil turns camera names and labels into filesystem-safe tokens.
package textutil
