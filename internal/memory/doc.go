// Package memory stores the assistant's persistent key/value memory as
// a JSON file on disk.
package memory
