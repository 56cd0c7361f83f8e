// Package voevent parses VOEvent alert documents and resolves the most
// recent retrievable one for a superevent, tolerating listed versions whose
// file is missing on the remote side.
package voevent
