// Package ldbstore implements training storage components that keep data
// on disk in a LevelDB database.
//
// Checkpoints stores snapshots of the shared model so that training can be
// resumed, and Dataset stores examples extracted from replays.
package ldbstore
