// Package vm implements the Baranium virtual machine.
//
// This package contains:
//   - Program loading from compiled scripts and libraries
//   - The operand stack of self-describing (data, size, type) triples
//   - Global and per-frame variable storage
//   - A tick-driven interpreter with compare flag and cv stack
//   - Host interfaces for natives and external objects
package vm
