// Package audio turns arbitrary media into the 16 kHz mono PCM WAV files the
// recognizers consume.
//
// Convert picks the primary audio stream (Select), applies the optional
// loudness, denoise and silence-trim filters, and transcodes. Extract cuts a
// time window out of a converted file for the segmenter.
package audio
