// Package host implements a managed runtime heap that native code is bridged to.
//
// Values are machine words: immediates carry 63-bit integers, everything else
// names a heap block by ObjectID. The collector is stop-the-world: it marks
// from named values, open local root sets and every registered
// ScanParticipant, frees the rest, and moves each survivor to a new address.
// Identities are never reused, so touching a freed block reports ErrCollected
// instead of silently reading another object.
//
// Native code never holds raw addresses. It holds identities, and any
// identity it needs to survive a collection must be reported by a scan
// participant (see package roots) or an open Locals set.
package host
