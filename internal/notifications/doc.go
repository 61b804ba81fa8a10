// Package notifications tells the user when a transcription job ends.
//
// Messages are published to an ntfy topic configured in config.toml. With no
// topic configured NewService returns a notifier that does nothing, so the
// pipeline can always call it.
package notifications
