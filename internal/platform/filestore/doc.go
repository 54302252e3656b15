// Package filestore persists task records as a single JSON document on local
// disk. Every persist rewrites the whole file through a temporary file and a
// rename, so readers never observe a partially written snapshot.
package filestore
