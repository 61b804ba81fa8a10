// Package config loads, normalizes, and validates subline configuration data.
//
// It supplies repository defaults (30 second chunks, the "base" model,
// automatic language detection, SRT output), expands user paths including
// tilde shortcuts, reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY and OPENROUTER_API_KEY. A .env file in the working directory
// is merged into the environment before those fallbacks are consulted.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical provider names, and clear validation errors.
package config
