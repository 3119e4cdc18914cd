// Package workspace manages the temporary directories snapshots are
// materialized into. Every directory is created fresh under a base directory
// and removed by its owner once the tag has been archived or has failed.
//
// Directories carry a fixed prefix so leftovers from an interrupted process
// can be swept on the next start.
package workspace
