// Package transcript contains the pure text logic of the dictation
// pipeline: hallucination detection over transcription output, smart-spacing
// transcript merging, and context prompt construction for follow-up
// transcription calls. Everything here is side-effect free.
package transcript
