// Package transcription implements the HTTP client for the speech-to-text
// backend. It packages WAV audio as multipart form data with language and
// prompt fields, classifies rate-limit responses as retryable, and applies
// bounded exponential backoff through an injectable sleep function.
package transcription
