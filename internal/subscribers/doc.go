// Package subscribers provides a file-backed set that survives process
// restarts. The bot uses it for the subscriber list and for the ledger of
// event ids already announced as new.
package subscribers
