// Command finagent runs the finance assistant. It has three subcommands:
//
//	finagent index   build the vector index from the documents directory
//	finagent serve   start the HTTP API
//	finagent chat    interactive question loop on stdin
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/finagent-ai/finagent"
	"github.com/finagent-ai/finagent/internal/aggregate"
	"github.com/finagent-ai/finagent/internal/api"
	"github.com/finagent-ai/finagent/internal/cache"
	"github.com/finagent-ai/finagent/internal/config"
	"github.com/finagent-ai/finagent/internal/executor"
	"github.com/finagent-ai/finagent/internal/extract"
	"github.com/finagent-ai/finagent/internal/llm"
	"github.com/finagent-ai/finagent/internal/mail"
	"github.com/finagent-ai/finagent/internal/planner"
	"github.com/finagent-ai/finagent/internal/retrieval"
	"github.com/finagent-ai/finagent/internal/store"
	"github.com/finagent-ai/finagent/internal/tools"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	switch flag.Arg(0) {
	case "index":
		err = runIndex(ctx, cfg)
	case "serve":
		err = runServe(ctx, cfg)
	case "chat":
		err = runChat(ctx, cfg)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "用法: finagent [-config config.yaml] <index|serve|chat>")
}

func indexPath(cfg *config.Config) string {
	return filepath.Join(cfg.VectorStore.PersistDir, "index.json")
}

func newIndex(cfg *config.Config) *retrieval.Index {
	embedder := llm.NewEmbedder(
		cfg.Models.Embedding.APIKey,
		cfg.Models.Embedding.APIBase,
		cfg.Models.Embedding.ModelName,
	)
	return retrieval.NewIndex(embedder,
		retrieval.WithChunking(cfg.Document.ChunkSize, cfg.Document.ChunkOverlap),
	)
}

// runIndex builds the vector index from the documents directory and persists
// it under the vector store directory.
func runIndex(ctx context.Context, cfg *config.Config) error {
	idx := newIndex(cfg)
	log.Printf("开始构建索引，文档目录: %s", cfg.Data.DocumentsDir)
	if err := idx.Build(ctx, cfg.Data.DocumentsDir); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.VectorStore.PersistDir, 0o755); err != nil {
		return err
	}
	path := indexPath(cfg)
	if err := idx.SaveFile(path); err != nil {
		return err
	}
	log.Printf("索引构建完成，共 %d 个片段，已保存至 %s", idx.Size(), path)
	return nil
}

// runtime bundles the wired components so serve and chat share the setup and
// teardown.
type runtime struct {
	agent *finagent.Agent
	reimb api.ReimbursementClient
	store store.Store
}

func (rt *runtime) Close() {
	if rt.agent != nil {
		rt.agent.Close()
	}
	if rt.store != nil {
		rt.store.Close()
	}
}

func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	idx := newIndex(cfg)
	if err := idx.LoadFile(indexPath(cfg)); err != nil {
		log.Printf("索引未加载（%v），请先运行 finagent index", err)
	}
	retriever := retrieval.NewHybridRetriever(idx,
		retrieval.WithHybridMode(cfg.RAG.Hybrid),
	)

	var st store.Store
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pg.CreateSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		st = pg
	default:
		st = store.NewSeededMemoryStore()
	}

	var reimb api.ReimbursementClient
	if cfg.API.BaseURL != "" {
		reimb = api.NewHTTPClient(cfg.API.BaseURL)
	} else {
		reimb = api.NewLocalClient(st)
	}

	var sender mail.Sender
	if cfg.Email.Enabled {
		smtp, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			UseTLS:   cfg.Email.UseTLS,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
		sender = smtp
	}

	catalog := tools.Catalog(retriever, st, reimb, sender)
	registry, err := finagent.NewRegistry(catalog,
		finagent.WithDependencies(tools.DependenciesFor(catalog)),
		finagent.WithPriorities(tools.PrioritiesFor(catalog)),
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	chat := llm.NewClient(cfg.Models.LLM.APIKey, cfg.Models.LLM.APIBase,
		llm.WithModel(cfg.Models.LLM.ModelName),
		llm.WithTemperature(float32(cfg.Models.LLM.Temperature)),
		llm.WithMaxTokens(cfg.Models.LLM.MaxTokens),
	)

	user := finagent.UserContext{
		Name:       cfg.User.Name,
		EmployeeID: cfg.User.EmployeeID,
		Department: cfg.User.Department,
	}

	planCache := cache.NewAdapter(cache.NewInMemoryCache())
	extractor := extract.NewExtractor(extract.WithUserContext(user))

	agent, err := finagent.New(
		finagent.WithRegistry(registry),
		finagent.WithUserContext(user),
		finagent.WithClassifier(planner.NewIntentClassifier(chat, registry, user)),
		finagent.WithPlanner(planner.NewPlanGenerator(chat, registry, planner.WithCache(planCache))),
		finagent.WithValidator(planner.NewPlanValidator(registry)),
		finagent.WithExecutor(executor.NewSequentialExecutor(registry, extract.NewValidator(extractor),
			executor.WithMaxSteps(cfg.Agent.MaxSteps),
			executor.WithMaxRetries(cfg.Agent.MaxRetries),
			executor.WithRetryDelay(cfg.Agent.RetryDelay()),
			executor.WithToolTimeout(cfg.Agent.ToolTimeout()),
		)),
		finagent.WithAggregator(aggregate.NewResultAggregator(chat)),
		finagent.WithConfig(finagent.Config{
			MaxSteps:            cfg.Agent.MaxSteps,
			MaxRetries:          cfg.Agent.MaxRetries,
			RetryDelay:          cfg.Agent.RetryDelay(),
			ToolTimeout:         cfg.Agent.ToolTimeout(),
			EnableEventBus:      true,
			EventBusBufferSize:  100,
			EventBusWorkerCount: 5,
		}),
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &runtime{agent: agent, reimb: reimb, store: st}, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	server := api.NewServer(rt.reimb, rt.agent)
	log.Printf("服务启动，监听 %s", cfg.API.ListenAddr)
	return server.Run(cfg.API.ListenAddr)
}

func runChat(ctx context.Context, cfg *config.Config) error {
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Println("财务助手已就绪，输入问题开始对话（quit/exit 退出）")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "quit" || question == "exit" {
			break
		}

		result, err := rt.agent.Run(ctx, question)
		if err != nil {
			fmt.Printf("处理失败: %v\n", err)
			continue
		}
		fmt.Println(result.Answer)
		for _, src := range result.Sources {
			fmt.Printf("  来源[%s]: %s\n", src.Type, src.Content)
		}
	}
	return scanner.Err()
}
