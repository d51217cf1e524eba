// Package knowledge maintains the semantic index of past interactions and
// curated patterns, and answers similarity queries against it.
package knowledge
