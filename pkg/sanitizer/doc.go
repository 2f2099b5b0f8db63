// Package sanitizer normalizes resource identifiers before they are validated,
// stored or compared.
//
// All functions are idempotent: applying them twice gives the same result as
// applying them once. Invalid input normalizes to the empty string or an empty
// slice rather than an error; validators reject it afterwards.
package sanitizer
