// Package llm translates subtitle lines through an OpenAI-compatible chat
// endpoint, OpenRouter by default, using go-openai.
//
// Replies are requested in JSON mode and decoded leniently (DecodeLLMJSON)
// because some routed models still wrap the object in prose or code fences.
// The client never retries on its own; the translation stage owns retry and
// fallback.
package llm
