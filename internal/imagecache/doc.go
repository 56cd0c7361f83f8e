// Package imagecache fetches sky-map images attached to superevents, trims
// their surrounding whitespace and caches them on disk under
// {root}/{event_id}/{filename}. A cached file is never re-fetched for the
// process lifetime.
package imagecache
