package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"healthbridge/internal/domain"
	"healthbridge/internal/engine"
)

func predictCmd() *cobra.Command {
	var (
		workflow    string
		sets        []string
		file        string
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "predict [workflow]",
		Short: "Run a questionnaire through its model",
		Long: `Answers come from --file (YAML map of field to value), then --set field=value
overrides, then interactive prompts for anything still missing when -i is given.
Blank answers count as unanswered.`,
		Example: `  hb predict stroke --set age=67 --set gender=Male ...
  hb predict depression -f answers.yml
  hb predict obesity -i`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				workflow = args[0]
			}
			if workflow == "" {
				return errors.New("workflow required (obesity, depression, stroke)")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				info, err := e.Workflow(workflow)
				if err != nil {
					return err
				}
				raw := domain.RawInput{}
				if file != "" {
					if raw, err = readAnswers(file); err != nil {
						return err
					}
				}
				for _, kv := range sets {
					k, v, ok := strings.Cut(kv, "=")
					if !ok || strings.TrimSpace(k) == "" {
						return fmt.Errorf("invalid --set %q, expected field=value", kv)
					}
					raw[strings.TrimSpace(k)] = v
				}
				if interactive {
					if err := promptAnswers(os.Stdin, os.Stdout, info, raw); err != nil {
						return err
					}
				}
				out, p, err := e.Predict(ctx, engine.PredictOptions{
					Workflow: string(info.ID),
					Input:    raw,
					ActorID:  viper.GetString("actor-id"),
				})
				var auditErr *engine.AuditError
				if err != nil && !errors.As(err, &auditErr) {
					return err
				}
				if auditErr != nil {
					fmt.Fprintf(os.Stderr, "warning: %v\n", auditErr)
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"prediction_id": p.ID, "outcome": out})
				}
				return printOutcome(out)
			})
		},
	}
	cmd.Flags().StringVar(&workflow, "workflow", "", "workflow id")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "answer as field=value (repeatable)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with answers")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for unanswered fields")
	return cmd
}

func printOutcome(out domain.PredictionOutcome) error {
	if !out.Success {
		if out.Failure == nil {
			return errors.New("prediction failed")
		}
		return errors.New(out.Failure.Message)
	}
	fmt.Println(out.Verdict)
	if out.Advisory != "" {
		fmt.Println()
		fmt.Println(out.Advisory)
	}
	return nil
}

// readAnswers loads a YAML mapping of field names to scalar answers.
func readAnswers(path string) (domain.RawInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid answers yaml: %w", err)
	}
	raw := domain.RawInput{}
	for k, v := range doc {
		switch val := v.(type) {
		case nil:
		case string:
			raw[k] = val
		case int:
			raw[k] = strconv.Itoa(val)
		case float64:
			raw[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			return nil, fmt.Errorf("invalid value for %s: expected string or number", k)
		}
	}
	return raw, nil
}

// promptAnswers asks for each field that has no answer yet. An empty line
// leaves the field unanswered.
func promptAnswers(in io.Reader, out io.Writer, info engine.WorkflowInfo, raw domain.RawInput) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintf(out, "%s\n", info.Title)
	for _, f := range info.Fields {
		if _, ok := raw.Value(f.Name); ok {
			continue
		}
		hint := allowedValues(f.Min, f.Max, f.Options)
		if hint != "" {
			fmt.Fprintf(out, "%s [%s]: ", f.Prompt, hint)
		} else {
			fmt.Fprintf(out, "%s: ", f.Prompt)
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return errCanceled
		}
		answer := strings.TrimSpace(scanner.Text())
		if len(f.Options) > 0 {
			answer = matchOption(answer, f.Options)
		}
		raw[f.Name] = answer
	}
	return nil
}

// matchOption accepts an option by its 1-based index or case-insensitively.
func matchOption(answer string, options []string) string {
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
		if _, isNum := strconv.Atoi(options[0]); isNum != nil {
			return options[n-1]
		}
	}
	for _, o := range options {
		if strings.EqualFold(o, answer) {
			return o
		}
	}
	return answer
}
