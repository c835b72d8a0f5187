// Package streaming provides timeout-protected chunked writing of media
// data to HTTP responses.
//
// Long-running streams (the constant-bitrate audio proxy, segment replay)
// must not be pinned forever by a client that stops reading: the Writer
// enforces a per-write timeout and an idle timeout, surfaces client
// disconnects as ErrClientGone, and flushes between chunks so playback can
// begin before the stream completes.
package streaming
