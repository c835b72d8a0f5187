// Package quality derives the set of viable transcode output variants for
// a probed source. The "original" profile always exists; fixed presets are
// offered only when they do not upscale the source.
package quality
