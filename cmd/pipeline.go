package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/audiolibrelab/fxhost/internal/service"
)

// executePipeline runs the pipeline steps after startStep.
func executePipeline(ctx context.Context, svc service.Service, source, name string, startStep rune) error {
	if pipeline == "" {
		return nil
	}

	steps := []rune(strings.ToLower(pipeline))

	startIndex := -1
	for i, step := range steps {
		if step == startStep {
			startIndex = i
			break
		}
	}
	if startIndex == -1 {
		return fmt.Errorf("step '%c' not found in pipeline '%s'", startStep, pipeline)
	}

	return runSteps(ctx, svc, source, name, steps[startIndex+1:])
}

func runSteps(ctx context.Context, svc service.Service, source, name string, steps []rune) error {
	for i, step := range steps {
		fmt.Printf("Pipeline: executing step %d/%d: '%c'...\n", i+1, len(steps), step)

		switch step {
		case 'r':
			if source == "" {
				return fmt.Errorf("pipeline render needs a source file")
			}
			result, err := svc.Render(ctx, source, name)
			if err != nil {
				return fmt.Errorf("pipeline render failed: %w", err)
			}
			printRender(result)

		case 'm':
			if err := svc.Mix(name); err != nil {
				return fmt.Errorf("pipeline mix failed: %w", err)
			}
			fmt.Println("Pipeline: mixing completed")

		case 'p':
			if err := svc.Play(name); err != nil {
				return fmt.Errorf("pipeline play failed: %w", err)
			}
			fmt.Println("Pipeline: playback completed")

		default:
			return fmt.Errorf("unknown pipeline step: '%c' (valid: r=render, m=mix, p=play)", step)
		}
	}
	return nil
}

func printRender(result *service.RenderResult) {
	fmt.Printf("Rendered %s: %d blocks, %d frames (%s of source)\n",
		result.Name, result.Blocks, result.Frames, result.Elapsed.Round(time.Millisecond))
	if result.Suppressed > 0 {
		fmt.Printf("Warning: %d blocks failed inside the module and were dropped\n", result.Suppressed)
	}
	fmt.Printf("Output: %s\n", result.OutputFile)
}

func validatePipeline() error {
	if pipeline == "" {
		return nil
	}

	validSteps := map[rune]bool{
		'r': true, // render
		'm': true, // mix
		'p': true, // play
	}

	steps := []rune(strings.ToLower(pipeline))
	for _, step := range steps {
		if !validSteps[step] {
			return fmt.Errorf("invalid pipeline step: '%c' (valid: r=render, m=mix, p=play)", step)
		}
	}

	return nil
}
