package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"hermes/internal/app"
	"hermes/internal/config"
	"hermes/internal/db"
	"hermes/internal/domain"
	"hermes/internal/engine"
	"hermes/internal/knowledge"
	"hermes/internal/migrate"
	"hermes/internal/richnote"
	"hermes/internal/server"
)

const envFile = ".env"

var rootCmd = &cobra.Command{
	Use:   "hermes",
	Short: "Hermes knowledge base CLI",
	Long: `Hermes keeps documents, folders and links, and lays them out as one browsable tree.
- Roots: three fixed top-level folders, Ações, Saúde and Projetos. Every item lands in one of them.
- Action folders: each task that has documents gets a folder under Ações, holding its documents and its diary.
- Orphan folders: documents of a deleted task stay together in a folder you can rename (hermes orphan title).
- Diary: the task's notes rendered as a read-only text document.
- Event log: every change is recorded, view it with 'hermes log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if err := godotenv.Load(filepath.Join(workspace, envFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("HERMES")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", server.LocalActor, "actor identifier recorded in the event log")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(foldersCmd())
	rootCmd.AddCommand(lsCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(breadcrumbCmd())
	rootCmd.AddCommand(diaryCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(itemCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(orphanCmd())
	rootCmd.AddCommand(noteCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var jwtSecret string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create hermes.yml and the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Println("wrote", path)
			}
			if jwtSecret != "" {
				if err := setEnvValue(filepath.Join(workspace, envFile), "HERMES_JWT_SECRET", jwtSecret); err != nil {
					return err
				}
			}
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				v, err := migrate.Current(a.DB)
				if err != nil {
					return err
				}
				fmt.Printf("workspace ready: %s (schema v%d)\n", db.Path(a.Workspace), v)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&jwtSecret, "jwt-secret", "", "store HERMES_JWT_SECRET in the workspace .env")
	return cmd
}

func importCmd() *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load items and tasks from a JSON or YAML snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Import(ctx, snap, engine.ImportOptions{Replace: replace}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "clear the store before loading")
	return cmd
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print every item and task as a JSON snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				snap, err := e.Snapshot(ctx)
				if err != nil {
					return err
				}
				return printJSON(snap)
			})
		},
	}
}

func foldersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "folders",
		Short: "List every folder, virtual ones included",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				folders, err := e.Folders(ctx)
				if err != nil {
					return err
				}
				return printNodes(folders)
			})
		},
	}
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [folder-id]",
		Short: "List a folder; without an id lists the roots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var current *knowledge.Key
			if len(args) == 1 {
				k := knowledge.ParseKey(args[0])
				current = &k
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				nodes, err := e.Browse(ctx, current)
				if err != nil {
					return err
				}
				return printNodes(nodes)
			})
		},
	}
}

func searchCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search titles, tags, text and diaries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := knowledge.ParseSearchMode(mode)
			if err != nil {
				return err
			}
			term := strings.Join(args, " ")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Search(ctx, term, m)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				return printNodes(res.Nodes)
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(knowledge.SearchAll), "all, folders or files")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one node; diaries print their text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.Node(ctx, knowledge.ParseKey(args[0]))
				if err != nil {
					return err
				}
				if !viper.GetBool("json") && n.Kind == knowledge.KindDiaryDocument {
					fmt.Print(n.Text)
					return nil
				}
				return printJSONOrTable(n)
			})
		},
	}
}

func breadcrumbCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "breadcrumb <id>",
		Short: "Print the path from the root down to a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				path, err := e.Breadcrumb(ctx, knowledge.ParseKey(args[0]))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(path)
				}
				titles := make([]string, 0, len(path))
				for _, n := range path {
					titles = append(titles, n.Title)
				}
				fmt.Println(strings.Join(titles, " / "))
				return nil
			})
		},
	}
}

func diaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diary <task-id>",
		Short: "Print the diary document of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				doc, err := e.Diary(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(doc)
				}
				fmt.Print(doc.Text)
				return nil
			})
		},
	}
}

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List distinct item categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cats, err := e.Categories(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cats)
				}
				for _, c := range cats {
					fmt.Println(c)
				}
				return nil
			})
		},
	}
}

func itemCmd() *cobra.Command {
	item := &cobra.Command{Use: "item", Short: "Manage stored items"}
	item.AddCommand(itemGetCmd())
	item.AddCommand(itemAddCmd())
	item.AddCommand(itemLinkCmd())
	item.AddCommand(itemRenameCmd())
	item.AddCommand(itemRemoveCmd())
	return item
}

func itemGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an item with its domain and origin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				detail, err := e.Item(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(detail)
			})
		},
	}
}

func itemAddCmd() *cobra.Command {
	var (
		it       domain.StorageItem
		parentID string
		module   string
		sourceID string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a file or folder record",
		RunE: func(cmd *cobra.Command, args []string) error {
			it.ParentID = optionalString(parentID)
			if module != "" || sourceID != "" {
				it.Origin = &domain.Origin{Module: module, SourceID: sourceID}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				saved, err := e.SaveItem(ctx, it, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(saved)
			})
		},
	}
	cmd.Flags().StringVar(&it.ID, "id", "", "item id (generated when empty)")
	cmd.Flags().StringVar(&it.Title, "title", "", "title")
	cmd.Flags().BoolVar(&it.IsFolder, "folder", false, "create a folder")
	cmd.Flags().StringVar(&it.FileType, "type", "", "file type, e.g. pdf")
	cmd.Flags().Int64Var(&it.Size, "size", 0, "size in bytes")
	cmd.Flags().StringVar(&it.Category, "category", "", "category")
	cmd.Flags().StringSliceVar(&it.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&it.RawText, "text", "", "extracted text")
	cmd.Flags().StringVar(&parentID, "parent", "", "parent folder id")
	cmd.Flags().StringVar(&module, "origin-module", "", "origin module, e.g. tarefas")
	cmd.Flags().StringVar(&sourceID, "origin-id", "", "id of the origin record")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func itemLinkCmd() *cobra.Command {
	var title, parentID string
	cmd := &cobra.Command{
		Use:   "link <url>",
		Short: "Store a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				saved, err := e.AddLink(ctx, title, args[0], optionalString(parentID), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(saved)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title (defaults to the url)")
	cmd.Flags().StringVar(&parentID, "parent", "", "parent folder id")
	return cmd
}

func itemRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename an item, keeping the file extension",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				saved, err := e.RenameItem(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(saved)
			})
		},
	}
}

func itemRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an item; folders must be empty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteItem(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks and their diaries"}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskRemoveCmd())
	task.AddCommand(taskNoteCmd())
	return task
}

func taskAddCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task, or rename it when --id exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.SaveTask(ctx, domain.Task{ID: id, Title: args[0]}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "task id (generated when empty)")
	return cmd
}

func taskRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task; its documents move to an orphan folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTask(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func taskNoteCmd() *cobra.Command {
	var kind, name string
	cmd := &cobra.Command{
		Use:   "note <task-id> <text>",
		Short: "Append a diary note; with --kind the text is the link, contact or file value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					entry domain.DiaryEntry
					err   error
				)
				if kind != "" {
					entry, err = e.AppendRichNote(ctx, args[0], richnote.Kind(kind), name, args[1], viper.GetString("actor-id"))
				} else {
					entry, err = e.AppendNote(ctx, args[0], args[1], viper.GetString("actor-id"))
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "link, contact or file")
	cmd.Flags().StringVar(&name, "name", "", "display name of a rich note")
	return cmd
}

func orphanCmd() *cobra.Command {
	orphan := &cobra.Command{Use: "orphan", Short: "Manage folders of deleted tasks"}
	orphan.AddCommand(&cobra.Command{
		Use:   "title <task-id> <title>",
		Short: "Name the folder of a deleted task; an empty title restores the placeholder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.SetOrphanTitle(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"task_id": args[0], "items": n})
			})
		},
	})
	return orphan
}

func noteCmd() *cobra.Command {
	note := &cobra.Command{Use: "note", Short: "Encode and decode rich diary notes"}
	var name string
	encode := &cobra.Command{
		Use:   "encode <kind> <value>",
		Short: "Print the stored form of a rich note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := richnote.ParseKind(args[0])
			if err != nil {
				return err
			}
			value := args[1]
			if kind == richnote.KindLink {
				value = richnote.EnsureHTTPURL(value)
			}
			fmt.Println(richnote.Encode(kind, name, value))
			return nil
		},
	}
	encode.Flags().StringVar(&name, "name", "", "display name")
	note.AddCommand(encode)
	note.AddCommand(&cobra.Command{
		Use:   "decode <text>",
		Short: "Decode a stored note, current or legacy format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := richnote.Decode(args[0])
			if !ok {
				return fmt.Errorf("not a rich note")
			}
			if viper.GetBool("json") {
				return printJSON(p)
			}
			fmt.Println(richnote.Render(p))
			return nil
		},
	})
	return note
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config lives in hermes.yml at the workspace root: diary time zone, server address and logging.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate hermes.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var legacyHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app.App) error {
				if !cmd.Flags().Changed("addr") {
					addr = a.Config.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") && a.Config.Server.BasePath != "" {
					basePath = a.Config.Server.BasePath
				}
				authCfg := server.AuthConfig{
					JWTSecret:              viper.GetString("jwt-secret"),
					AllowLegacyActorHeader: legacyHeader,
				}
				if authCfg.JWTSecret == "" {
					a.Logger.Warn().Msg("HERMES_JWT_SECRET not set; API runs without authentication")
				}
				handler, err := server.New(server.Config{
					Engine:      a.Engine,
					BasePath:    basePath,
					Auth:        authCfg,
					CORSOrigins: a.Config.Server.CORSOrigins,
					Logger:      a.Logger.Logger,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				a.Logger.Info().Str("addr", addr).Str("base_path", basePath).Msg("serving Hermes API")
				fmt.Printf("Serving Hermes API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at %s/docs)\n", addr, basePath, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address (default from hermes.yml)")
	cmd.Flags().StringVar(&basePath, "base-path", server.DefaultBasePath, "API base path")
	cmd.Flags().String("jwt-secret", "", "HS256 secret for bearer tokens (env HERMES_JWT_SECRET)")
	cmd.Flags().BoolVar(&legacyHeader, "allow-actor-header", false, "accept X-Actor-Id without a token")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, requireConfig bool, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(viper.GetString("workspace"), app.Options{RequireConfig: requireConfig, LogOutput: os.Stderr})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withApp(ctx, false, func(ctx context.Context, a *app.App) error {
		return fn(ctx, a.Engine)
	})
}

func readSnapshot(path string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		// decode generically so YAML keys follow the JSON field names
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return snap, fmt.Errorf("parse %s: %w", path, err)
		}
		if data, err = json.Marshal(raw); err != nil {
			return snap, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("parse %s: %w", path, err)
	}
	return snap, nil
}

func printNodes(nodes []knowledge.Node) error {
	if viper.GetBool("json") {
		return printJSON(nodes)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Kind", "Title", "Created", "Size"})
	for _, n := range nodes {
		tw.AppendRow(table.Row{n.ID(), n.Kind, n.Title, n.CreatedAt, n.Size})
	}
	tw.Render()
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// setEnvValue sets key in a dotenv file, keeping the other entries.
func setEnvValue(path, key, value string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		env = map[string]string{}
	}
	env[key] = value
	return godotenv.Write(env, path)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
