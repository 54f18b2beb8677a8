package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"videojobs/internal/domain"
)

const syntheticBlock = 4 << 10

// synthetic writes a deterministic placeholder artifact for the step. The same
// job, step and settings always produce the same bytes.
func (c *Client) synthetic(ctx context.Context, service string, in domain.StepInput) (domain.StepOutput, error) {
	seed := syntheticSeed(service, in)
	if in.ReportProgress != nil {
		in.ReportProgress(50)
	}
	data := renderSynthetic(seed, service, in.Settings)
	ref, err := c.objects.Put(ctx, artifactKey(in, syntheticExtension(service)), data)
	if err != nil {
		if ctx.Err() != nil {
			return domain.StepOutput{}, ctxError(service, ctx.Err())
		}
		return domain.StepOutput{}, domain.NewStepError(domain.KindTransient, "%s: store synthetic artifact: %v", service, err)
	}

	c.logger.Debug().
		Str("job_id", in.JobID).
		Str("step", in.StepName).
		Str("service", service).
		Int("bytes", len(data)).
		Msg("inference: generated synthetic artifact")

	return domain.StepOutput{OutputRef: ref, DurationMs: syntheticDurationMs(in.Settings)}, nil
}

func syntheticSeed(service string, in domain.StepInput) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%.2f|%s|%s|%d",
		in.JobID, in.StepName, service, in.PreviousOutput,
		in.Settings.Quality, in.Settings.Speed, in.Settings.Voice, in.Settings.Language, in.Settings.DurationSeconds)
	for _, input := range in.Inputs {
		fmt.Fprintf(h, "|%s:%s:%s", input.Kind, input.Ref, input.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func renderSynthetic(seed, service string, s domain.Settings) []byte {
	blocks := 1
	switch s.Quality {
	case domain.QualityMedium:
		blocks = 2
	case domain.QualityHigh:
		blocks = 3
	}
	header := fmt.Sprintf("SYNTHETIC %s %s lang=%s voice=%s\n", strings.ToUpper(service), seed[:16], s.Language, s.Voice)
	size := blocks * syntheticBlock
	out := make([]byte, 0, size)
	out = append(out, header...)
	for len(out) < size {
		out = append(out, seed...)
	}
	return out[:size]
}

func syntheticExtension(service string) string {
	if strings.Contains(service, "speech") || strings.Contains(service, "audio") {
		return "wav"
	}
	return "mp4"
}

func syntheticDurationMs(s domain.Settings) int64 {
	seconds := s.DurationSeconds
	if seconds <= 0 {
		seconds = domain.DefaultDurationSeconds
	}
	speed := s.Speed
	if speed <= 0 {
		speed = domain.DefaultSpeed
	}
	return int64(float64(seconds) * 1000 / speed)
}
