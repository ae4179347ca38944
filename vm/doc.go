// Package vm implements the slotvm object model and bytecode engine.
//
// This package contains:
//   - The slot registry of special-method families
//   - Type descriptors with C3 resolution order and live slot tables
//   - Per-host-representation operation caches
//   - The descriptor protocol and attribute lookup
//   - Unary, binary and rich-comparison dispatch with subtype priority
//   - The call adaptation layer for Go-implemented callables
//   - The frame evaluator for wordcode instructions
package vm
