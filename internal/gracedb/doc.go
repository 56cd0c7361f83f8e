// Package gracedb is a thin REST client for the GraceDB superevent database.
//
// It covers the four endpoints the bot needs: the paginated superevent
// listing, single superevent lookup, the attached-file listing and the
// VOEvent version listing, plus raw fetches of file URLs taken from those
// listings. Transient failures are retried with capped exponential backoff;
// a remote 404 is surfaced as ErrNotFound so callers can fall back instead
// of retrying.
package gracedb
