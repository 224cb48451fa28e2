// Package canonical produces deterministic byte encodings and content hashes.
//
// Encoding follows RFC 8785 (JSON Canonicalization Scheme) restricted to the
// value kinds webtest needs for content addressing: strings, integers,
// booleans, arrays and objects. Floats and nulls are rejected because their
// encodings are not stable across producers.
//
// Hashes use SHA-256 with domain separation:
//
//	SHA256(domain + 0x00 + part[0] + 0x00 + part[1] ...)
//
// so that a snapshot key can never collide with a hash computed for another
// purpose over the same bytes.
package canonical
