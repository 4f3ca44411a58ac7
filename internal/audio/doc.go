// Package audio handles PCM audio decoding, loudness measurement, and
// format conversion. It decodes base64 chunks from the capture client,
// computes RMS loudness for silence gating, and encodes accumulated PCM
// into WAV containers for transcription.
package audio
