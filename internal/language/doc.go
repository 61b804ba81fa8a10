// Package language normalizes language codes and names.
//
// Configured languages may be written as ISO 639-1 or 639-2 codes or as
// English names. Recognition engines get ISO 639-1 codes, translation
// prompts get display names, and stream tags are matched with Same.
package language
