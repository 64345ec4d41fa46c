package buildoptions

// CallStackCeiling is the maximum number of nested function calls, which
// when exceeded leads to a stack overflow trap. This mirrors the guard
// wazero's interpreter engine places on call depth, since Go itself won't
// stack-overflow-protect a recursive guest program for us.
const CallStackCeiling = 2000

// DecodeLabelStackCapacity is the initial capacity reserved for the
// decoder's label stack (one entry per open block/loop/if). Nesting past
// this only costs a slice growth, never a hard limit.
const DecodeLabelStackCapacity = 512

// DecodeStackTypeBitsCapacity is the initial capacity, in bits, reserved
// for the decoder's operand-stack type-width scratch bitmap (bit i: 0
// means the slot at virtual stack depth i holds a 32-bit value, 1 means
// 64-bit). Growing past this only costs a slice growth.
const DecodeStackTypeBitsCapacity = 4096
