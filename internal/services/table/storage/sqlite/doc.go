// Package sqlite stores the opaque bearer token the table client presents
// when it connects.
package sqlite
