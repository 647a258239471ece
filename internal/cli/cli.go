// Package cli implements the fabricctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"contentfabric/internal/bootstrap"
	"contentfabric/internal/domain"
	"contentfabric/internal/infra"
	"contentfabric/internal/reconcile"
)

// NewRootCommand returns the fabricctl command tree. Configuration comes from
// the same environment and CONFIG_FILE as the api and worker binaries.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "fabricctl",
		Short:         "Operate the content fabric store and queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		migrateCmd(),
		templateCmd(),
		expandCmd(),
		jobCmd(),
		drainCmd(),
		reconcileCmd(),
		credentialsCmd(),
	)
	return root
}

type env struct {
	cfg    *infra.Config
	logger infra.Logger
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := infra.NewLogger("cli").Output(cmd.ErrOrStderr()).With().Str("cmd", cmd.CommandPath()).Logger()
	return &env{cfg: cfg, logger: logger}, nil
}

// withRuntime opens the configured store for the duration of fn.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *bootstrap.Runtime) error) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := bootstrap.Open(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if e.cfg.StoreDriver != infra.StoreDriverPostgres {
				fmt.Fprintf(cmd.OutOrStdout(), "store driver %s has no schema to migrate\n", e.cfg.StoreDriver)
				return nil
			}
			version, err := infra.Migrate(e.cfg.DatabaseURL, e.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "template", Short: "Manage prompt templates"}

	var (
		name   string
		text   string
		params []string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a prompt template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				t, err := rt.Service.CreateTemplate(ctx, domain.TemplateInput{
					Name:         name,
					Template:     text,
					ParameterIDs: params,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), t)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "template name")
	create.Flags().StringVar(&text, "text", "", "template text with {{placeholders}}")
	create.Flags().StringSliceVar(&params, "param", nil, "parameter id (repeatable)")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("text")

	list := &cobra.Command{
		Use:   "list",
		Short: "List prompt templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				items, err := rt.Service.ListTemplates(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func expandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expand TEMPLATE_ID...",
		Short: "Expand templates into generated prompts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				res, err := rt.Service.Expand(ctx, args)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "job", Short: "Create, start and inspect generation jobs"}

	var (
		in        domain.CreateJobInput
		aspect    string
		negative  string
		fromTplID string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a draft job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				if fromTplID != "" {
					prompts, err := rt.Service.ListPrompts(ctx, fromTplID)
					if err != nil {
						return err
					}
					for _, p := range prompts {
						in.PromptIDs = append(in.PromptIDs, p.ID)
					}
				}
				if aspect != "" || negative != "" {
					in.Settings = &domain.GenerationSettings{AspectRatio: aspect, NegativePrompt: negative}
				}
				g, err := rt.Service.CreateJob(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), g)
			})
		},
	}
	create.Flags().StringVar(&in.Name, "name", "", "job name")
	create.Flags().StringVar(&in.ModelID, "model", "", "model id")
	create.Flags().StringVar(&in.Provider, "provider", "synthetic", "provider name")
	create.Flags().StringSliceVar(&in.PromptIDs, "prompt", nil, "prompt id (repeatable)")
	create.Flags().StringVar(&fromTplID, "from-template", "", "use every prompt generated from this template")
	create.Flags().StringVar(&aspect, "aspect-ratio", "", "aspect ratio hint")
	create.Flags().StringVar(&negative, "negative-prompt", "", "negative prompt hint")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("model")

	start := &cobra.Command{
		Use:   "start JOB_ID",
		Short: "Dispatch the tasks of a draft job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				g, err := rt.Service.StartJob(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), g)
			})
		},
	}

	progress := &cobra.Command{
		Use:   "progress JOB_ID",
		Short: "Show the progress of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				view, err := rt.Service.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), struct {
					ID       string                  `json:"id"`
					Status   domain.GenerationStatus `json:"status"`
					Progress domain.Progress         `json:"progress"`
				}{view.ID, view.Status, view.Progress})
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				jobs, err := rt.Service.ListJobs(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(w, "No jobs found.")
					return nil
				}
				for _, g := range jobs {
					p := domain.ProgressOf(g)
					fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\n", g.ID, g.Status, g.Name, p.Completed, p.Total)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(create, start, progress, list)
	return cmd
}

func drainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Process queued tasks until the queue is empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				pool, err := rt.WorkerPool(ctx)
				if err != nil {
					return err
				}
				n, err := pool.Drain(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "processed %d items\n", n)
				return nil
			})
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconcile sweep over stale processing jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				sweeper := reconcile.NewSweeper(rt.Store.Generations, rt.Service, rt.Config.ReconcileStaleAfter, rt.Logger)
				rep, err := sweeper.Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %d tasks across %d jobs\n", rep.Requeued, rep.Jobs)
				return nil
			})
		},
	}
}

func credentialsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "credentials", Short: "Manage stored provider API keys"}

	var key string
	set := &cobra.Command{
		Use:   "set PROVIDER",
		Short: "Store the API key of a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := strings.ToLower(strings.TrimSpace(args[0]))
			if strings.TrimSpace(key) == "" {
				return fmt.Errorf("--key is required")
			}
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				store, err := rt.RequireCredentials()
				if err != nil {
					return err
				}
				if err := store.SetToken(ctx, provider, strings.TrimSpace(key), nil); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s API key stored\n", strings.ToUpper(provider))
				return nil
			})
		},
	}
	set.Flags().StringVar(&key, "key", "", "API key")

	del := &cobra.Command{
		Use:   "delete PROVIDER",
		Short: "Remove the stored API key of a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *bootstrap.Runtime) error {
				store, err := rt.RequireCredentials()
				if err != nil {
					return err
				}
				removed, err := store.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintln(cmd.OutOrStdout(), "No stored key.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s API key removed\n", strings.ToUpper(strings.TrimSpace(args[0])))
				return nil
			})
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}
