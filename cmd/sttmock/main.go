// Command sttmock is a local stand-in for a whisper-style
// transcription API for development and manual testing. It accepts
// the multipart upload the service sends, logs what it received, and
// returns a canned transcript.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"time"
)

var cannedSegments = []string{
	"The quarterly numbers look better than expected.",
	"Let's schedule a follow up meeting for next Tuesday.",
	"The deployment pipeline needs another review pass.",
	"Remember to update the documentation before the release.",
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	requestID := r.FormValue("request_id")
	model := r.FormValue("model")
	language := r.FormValue("language")
	prompt := r.FormValue("prompt")

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	log.Printf("transcription request: id=%s model=%s language=%s file=%s size=%d prompt=%q",
		requestID, model, language, header.Filename, len(audioData), prompt)

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	// Roughly one second of WAV audio per 32044 bytes at 16kHz PCM-16
	response := transcriptionResponse{
		Text:     cannedSegments[rand.IntN(len(cannedSegments))],
		Language: language,
		Duration: float64(len(audioData)) / 32044,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("transcription response: %q", response.Text)
}

func main() {
	addr := flag.String("addr", ":9000", "listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/audio/transcriptions", transcribeHandler)

	log.Printf("mock transcription server listening on %s", *addr)
	log.Printf("point transcription.endpoint at http://localhost%s/v1/audio/transcriptions", *addr)

	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatal("server failed to start:", err)
	}
}
