package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"healthbridge/internal/app"
	"healthbridge/internal/config"
	"healthbridge/internal/engine"
	"healthbridge/internal/engine/auth"
	"healthbridge/internal/migrate"
	"healthbridge/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "hb",
	Short: "HealthBridge CLI",
	Long: `HealthBridge runs health questionnaires through pre-trained classifiers.
Core concepts:
- Workflow: one questionnaire (obesity, depression, stroke) bound to a model artifact.
- Pipeline: answers are validated, encoded into the model's feature columns, predicted, then presented as a verdict with advice.
- Workspace: a directory holding healthbridge.yml, the model artifacts it names and the .healthbridge database.
- History: every prediction attempt is recorded with its outcome; answers are stored only when history.store_inputs is on.
- Event log: predictions, model loads and key changes, view with 'hb log tail'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("HEALTHBRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().Bool("debug", false, "debug logging")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func registerCommands() {
	rootCmd.AddCommand(workflowsCmd())
	rootCmd.AddCommand(predictCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(serveCmd())
}

func workflowsCmd() *cobra.Command {
	wf := &cobra.Command{Use: "workflows", Short: "Inspect questionnaires"}
	wf.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List workflows and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				items := ws.Engine.Workflows()
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Title", "Enabled", "Missing", "Model"})
				for _, w := range items {
					model := ""
					if w.Model != nil {
						model = w.Model.Handle
					}
					tw.AppendRow(table.Row{w.ID, w.Title, w.Enabled, w.MissingPolicy, model})
				}
				tw.Render()
				return nil
			})
		},
	})
	wf.AddCommand(&cobra.Command{
		Use:   "show <workflow>",
		Short: "Show a workflow's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				w, err := ws.Engine.Workflow(args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(w)
				}
				fmt.Printf("%s (%s)\n", w.Title, w.ID)
				tw := newTable()
				tw.AppendHeader(table.Row{"Field", "Prompt", "Type", "Allowed"})
				for _, f := range w.Fields {
					tw.AppendRow(table.Row{f.Name, f.Prompt, f.Type, allowedValues(f.Min, f.Max, f.Options)})
				}
				tw.Render()
				return nil
			})
		},
	})
	return wf
}

func modelsCmd() *cobra.Command {
	mdl := &cobra.Command{Use: "models", Short: "Load and inspect model artifacts"}
	mdl.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load every enabled model and report its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				infos, err := ws.Engine.LoadModels(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(infos)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Workflow", "Model", "Loaded", "Error"})
				failed := 0
				for _, info := range infos {
					tw.AppendRow(table.Row{info.ID, info.Model.Handle, info.Model.Loaded, info.Model.Error})
					if !info.Model.Loaded {
						failed++
					}
				}
				tw.Render()
				if failed > 0 {
					return fmt.Errorf("%d model(s) unavailable", failed)
				}
				return nil
			})
		},
	})
	return mdl
}

func historyCmd() *cobra.Command {
	hist := &cobra.Command{Use: "history", Short: "Browse recorded predictions"}
	var f repo.PredictionFilters
	var workflow string
	list := &cobra.Command{
		Use:   "list",
		Short: "List predictions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if workflow != "" {
					w, err := ws.Engine.Workflow(workflow)
					if err != nil {
						return err
					}
					f.Workflow = w.ID
				}
				items, err := ws.Engine.Repo.ListPredictions(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Created", "Workflow", "Actor", "Status", "Label", "Detail"})
				for _, p := range items {
					detail := p.Verdict
					if p.Status != repo.StatusSucceeded {
						detail = p.FailureText
					}
					tw.AppendRow(table.Row{p.ID, p.CreatedAt, p.Workflow, p.ActorID, p.Status, p.Label, detail})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&workflow, "workflow", "", "workflow filter")
	list.Flags().StringVar(&f.Status, "status", "", "status filter (succeeded, rejected, failed)")
	list.Flags().StringVar(&f.ActorID, "actor", "", "actor filter")
	list.Flags().IntVar(&f.Limit, "n", 20, "number of predictions")
	hist.AddCommand(list)
	hist.AddCommand(&cobra.Command{
		Use:   "show <prediction-id>",
		Short: "Show one prediction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				p, err := ws.Engine.Repo.GetPrediction(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	})
	return hist
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	var f repo.EventFilters
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				items, err := ws.Engine.Repo.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Workflow", "Entity", "Actor"})
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.Workflow, evt.EntityKind + ":" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	tail.Flags().StringVar(&f.Type, "type", "", "event type filter")
	tail.Flags().StringVar(&f.Workflow, "workflow", "", "workflow filter")
	tail.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	tail.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	lg.AddCommand(tail)
	return lg
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "healthbridge.yml selects enabled workflows and their model artifacts, history retention, server settings and webhooks. Without the file built-in defaults apply.",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(c)
			}
			out, err := c.YAML()
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate healthbridge.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				msg := ""
				if err != nil {
					msg = err.Error()
				}
				return printJSON(map[string]any{"ok": err == nil, "error": msg})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default healthbridge.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfg.AddCommand(initCmd)
	return cfg
}

func apiKeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys for the HTTP API"}
	var name, role string
	create := &cobra.Command{
		Use:   "create <actor-id>",
		Short: "Create an API key; the key is printed once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				k, plain, err := ws.Engine.CreateAPIKey(ctx, args[0], name, role, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": k.ID, "actor_id": k.ActorID, "role": k.Role, "key": plain})
				}
				fmt.Printf("API key %s for %s (%s):\n%s\n", k.ID, k.ActorID, k.Role, plain)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "key name")
	create.Flags().StringVar(&role, "role", auth.RoleService, "role: "+strings.Join(auth.Roles(), ", "))
	key.AddCommand(create)

	var actor string
	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				keys, err := ws.Engine.Repo.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Role", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.Role, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&actor, "actor", "", "actor filter")
	key.AddCommand(list)
	key.AddCommand(&cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if err := ws.Engine.RevokeAPIKey(ctx, args[0], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Printf("Revoked %s\n", args[0])
				return nil
			})
		},
	})
	return key
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				version, err := migrate.Version(ctx, ws.DB)
				if err != nil {
					return err
				}
				type row struct {
					Workflow string         `json:"workflow"`
					Enabled  bool           `json:"enabled"`
					Counts   map[string]int `json:"counts"`
				}
				var rows []row
				for _, w := range ws.Engine.Workflows() {
					counts, err := ws.Engine.Repo.CountPredictionsByStatus(ctx, w.ID)
					if err != nil {
						return err
					}
					rows = append(rows, row{Workflow: string(w.ID), Enabled: w.Enabled, Counts: counts})
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"schema_version": version, "workflows": rows})
				}
				fmt.Printf("Workspace %s (schema v%d)\n", ws.Dir, version)
				tw := newTable()
				tw.AppendHeader(table.Row{"Workflow", "Enabled", repo.StatusSucceeded, repo.StatusRejected, repo.StatusFailed})
				for _, r := range rows {
					tw.AppendRow(table.Row{r.Workflow, r.Enabled, r.Counts[repo.StatusSucceeded], r.Counts[repo.StatusRejected], r.Counts[repo.StatusFailed]})
				}
				tw.Render()
				return nil
			})
		},
	}
}

// --- helpers ---

func withWorkspace(ctx context.Context, fn func(context.Context, *app.Workspace) error) error {
	log, err := newLogger(false)
	if err != nil {
		return err
	}
	defer log.Sync()
	ws, err := app.Open(ctx, app.Options{Workspace: viper.GetString("workspace"), Logger: log})
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws)
}

// withEngine is a shorthand for commands that only need the engine.
func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withWorkspace(ctx, func(ctx context.Context, ws *app.Workspace) error {
		return fn(ctx, ws.Engine)
	})
}

// newLogger keeps one-shot commands quiet unless --debug is set; serve logs
// at info.
func newLogger(server bool) (*zap.Logger, error) {
	debug := viper.GetBool("debug")
	if server || debug {
		return app.NewLogger(debug)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func allowedValues(min, max *float64, options []string) string {
	switch {
	case len(options) > 0:
		return strings.Join(options, " | ")
	case min != nil && max != nil:
		return fmt.Sprintf("%g..%g", *min, *max)
	default:
		return ""
	}
}

var errCanceled = errors.New("canceled")
