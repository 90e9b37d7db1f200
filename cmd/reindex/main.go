// Package main is the entry point for the reindex backfill tool. It
// rebuilds both search collections from the primary store and exits
// non-zero when any document fails to index.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/squadnav-ai/conversational-backend/internal/config"
	"github.com/squadnav-ai/conversational-backend/internal/primary"
	"github.com/squadnav-ai/conversational-backend/internal/search"
	"github.com/squadnav-ai/conversational-backend/internal/service"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
)

func main() {
	batchSize := flag.Int("batch-size", 500, "messages per bulk indexing request")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	flag.Parse()

	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	primaryStore, err := primary.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to primary store", zap.Error(err))
		os.Exit(1)
	}
	defer primaryStore.Close()

	searchClient, err := search.New(search.Config{
		URL:         cfg.ElasticsearchURL(),
		IndexPrefix: cfg.ESIndexPrefix,
	}, log)
	if err != nil {
		log.Error("failed to create search client", zap.Error(err))
		os.Exit(1)
	}
	if err := searchClient.EnsureIndices(ctx); err != nil {
		log.Error("failed to bootstrap search indices", zap.Error(err))
		os.Exit(1)
	}

	reindex := service.NewReindexService(primaryStore, searchClient, *batchSize, log)
	report, err := reindex.Run(ctx)
	if err != nil {
		log.Error("reindex failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("indexed %d conversations (%d failed), %d messages (%d failed)\n",
		report.Conversations, report.ConversationsFailed,
		report.Messages, report.MessagesFailed)

	if report.ConversationsFailed > 0 || report.MessagesFailed > 0 {
		os.Exit(1)
	}
}
