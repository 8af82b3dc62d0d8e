package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
)

// VoiceService transcribes voice-message attachments so spoken commands
// ("nợ năm mươi nghìn...") flow into the same classifier as typed ones.
type VoiceService struct {
	client *speech.Client
}

// NewVoiceService initializes the speech client. Without Google Cloud
// credentials the service stays up but reports voice as unavailable.
func NewVoiceService() *VoiceService {
	client, err := speech.NewClient(context.Background())
	if err != nil {
		log.Printf("[VOICE] Speech client unavailable, voice commands disabled: %v", err)
		return &VoiceService{client: nil}
	}
	return &VoiceService{client: client}
}

// Enabled reports whether transcription is available.
func (s *VoiceService) Enabled() bool {
	return s.client != nil
}

// Close releases the speech client.
func (s *VoiceService) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Transcribe converts recorded audio to Vietnamese text.
func (s *VoiceService) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if s.client == nil {
		return "", errors.New("voice transcription is not configured")
	}
	if len(audio) == 0 {
		return "", errors.New("audio data is empty")
	}

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
			LanguageCode:               "vi-VN",
			EnableAutomaticPunctuation: false,
			Model:                      "latest_short",
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := s.client.Recognize(timeoutCtx, req)
	if err != nil {
		return "", fmt.Errorf("recognition failed: %w", err)
	}
	if len(resp.Results) == 0 {
		return "", errors.New("no transcription results")
	}

	var transcript strings.Builder
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			transcript.WriteString(result.Alternatives[0].Transcript)
			transcript.WriteString(" ")
		}
	}
	text := strings.TrimSpace(transcript.String())
	if text == "" {
		return "", errors.New("no alternatives in results")
	}

	log.Printf("[VOICE] Transcribed %d bytes of audio", len(audio))
	return text, nil
}
