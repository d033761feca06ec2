package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	appconfig "github.com/snarg/call-engine/internal/config"
)

// pollyEngine synthesizes through AWS Polly. Raw PCM is requested directly
// at the telephony rate, so no resampling pass is needed for this engine.
type pollyEngine struct {
	client *polly.Client
	voice  types.VoiceId
}

func newPolly(ctx context.Context, cfg *appconfig.Config) (*pollyEngine, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	voice := types.VoiceIdJoanna
	if cfg.TTSVoice != "" {
		voice = types.VoiceId(cfg.TTSVoice)
	}
	return &pollyEngine{client: polly.NewFromConfig(awsCfg), voice: voice}, nil
}

func (e *pollyEngine) Name() string { return "polly" }

func (e *pollyEngine) Synthesize(ctx context.Context, text string) ([]int16, int, error) {
	out, err := e.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         &text,
		VoiceId:      e.voice,
		OutputFormat: types.OutputFormatPcm,
		SampleRate:   strPtr("8000"),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("polly synthesize: %w", err)
	}
	defer out.AudioStream.Close()

	raw, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, 0, err
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}
	return samples, TargetSampleRate, nil
}

func strPtr(s string) *string { return &s }
