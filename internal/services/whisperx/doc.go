// Package whisperx runs the WhisperX speech recognizer through uvx and reads
// back its JSON transcript (segments plus the detected language).
//
// Configuration options (model variant, CUDA, VAD method) are passed via Config.
package whisperx
