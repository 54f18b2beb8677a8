package inference

import (
	"context"
	"errors"
	"strings"

	"videojobs/internal/domain"
)

// ValidationService is the service name of the built-in validation step.
const ValidationService = "validation"

// Validator checks a job's inputs locally before any remote service runs.
// It produces no artifact.
type Validator struct {
	objects domain.ObjectStore
}

func NewValidator(objects domain.ObjectStore) *Validator {
	return &Validator{objects: objects}
}

func (v *Validator) Invoke(ctx context.Context, in domain.StepInput) (domain.StepOutput, error) {
	if len(in.Inputs) == 0 {
		return domain.StepOutput{}, domain.NewStepError(domain.KindInvalidInput, "job has no inputs")
	}
	if err := in.Settings.Validate(); err != nil {
		return domain.StepOutput{}, domain.NewStepError(domain.KindUnsupported, "settings: %v", err)
	}

	images := 0
	for i, input := range in.Inputs {
		switch input.Kind {
		case domain.InputKindText:
			if strings.TrimSpace(input.Text) == "" {
				return domain.StepOutput{}, domain.NewStepError(domain.KindInvalidInput, "input %d: text is empty", i)
			}
		case domain.InputKindImage, domain.InputKindAudio:
			if input.Kind == domain.InputKindImage {
				images++
			}
			size, err := v.objects.SizeOf(ctx, input.Ref)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				return domain.StepOutput{}, domain.NewStepError(domain.KindInvalidInput, "input %d: %s not found", i, input.Ref)
			case err != nil:
				if ctx.Err() != nil {
					return domain.StepOutput{}, ctxError(ValidationService, ctx.Err())
				}
				return domain.StepOutput{}, domain.NewStepError(domain.KindTransient, "input %d: %v", i, err)
			case size == 0:
				return domain.StepOutput{}, domain.NewStepError(domain.KindInvalidInput, "input %d: %s is empty", i, input.Ref)
			}
		default:
			return domain.StepOutput{}, domain.NewStepError(domain.KindUnsupported, "input %d: unsupported kind %q", i, input.Kind)
		}
		if in.ReportProgress != nil {
			in.ReportProgress((i + 1) * 100 / len(in.Inputs))
		}
	}
	if images == 0 {
		return domain.StepOutput{}, domain.NewStepError(domain.KindInvalidInput, "at least one image input is required")
	}
	return domain.StepOutput{}, nil
}

// Runners binds every catalog service to a runner. The validation service
// runs locally; everything else goes through the client.
func Runners(client *Client, validator *Validator, services []string) map[string]domain.StepRunner {
	out := make(map[string]domain.StepRunner, len(services))
	for _, service := range services {
		if service == ValidationService && validator != nil {
			out[service] = validator
			continue
		}
		out[service] = client.Runner(service)
	}
	return out
}
