// Package ratelimit implements fixed-window request throttling.
//
// A counter is kept per key "identifier:limit:windowSeconds". The first hit
// in a window starts it with count 1 and resetAt = now + window; later hits
// increment until resetAt passes, after which the next hit starts a fresh
// window. Expiry is evaluated lazily on access; the MemoryStore sweep only
// bounds memory.
package ratelimit
