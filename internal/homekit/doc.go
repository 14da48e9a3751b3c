// Package homekit exposes the garage door to Apple Home.
//
// A bridge accessory carries two accessories: a garage door opener whose
// current and target door state follow the published snapshots, and a
// lightbulb for the drive's lamp. Remote writes from a Home app become
// door commands with source "homekit".
//
// Pairing data lives in an hap file store under homekit.storage_path.
package homekit
