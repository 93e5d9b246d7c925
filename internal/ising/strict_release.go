//go:build !debug

package ising

const strictInvariants = false
