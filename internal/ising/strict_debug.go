//go:build debug

package ising

// strictInvariants turns energy bookkeeping drift into a panic.
const strictInvariants = true
