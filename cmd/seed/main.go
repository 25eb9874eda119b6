package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"islamic-qa-platform/internal/config"
	"islamic-qa-platform/internal/queue"
	"islamic-qa-platform/internal/store"
	"islamic-qa-platform/internal/textnorm"
	"islamic-qa-platform/models"
	"islamic-qa-platform/utils"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Bulk loader for scraped Q&A corpora. Reads one JSON document per line,
// deduplicates by normalized question hash, inserts into the store and
// enqueues an indexing task per new document; the running API process
// consumes the tasks and serves the answers.
func main() {
	var (
		inputPath = flag.String("file", "", "JSONL file of documents to load")
		enqueue   = flag.Bool("enqueue", true, "enqueue indexing tasks for the API process")
	)
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("usage: seed -file corpus.jsonl")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())

	docs := store.NewMongoStore(mongoClient, cfg.DBName)

	var asynqClient *asynq.Client
	if *enqueue {
		redisOpt, err := queue.RedisConnOpt(cfg)
		if err != nil {
			log.Fatalf("Invalid Redis configuration: %v", err)
		}
		asynqClient = asynq.NewClient(redisOpt)
		defer asynqClient.Close()
	}

	file, err := os.Open(*inputPath)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *inputPath, err)
	}
	defer file.Close()

	ctx := context.Background()
	inserted, duplicates, skipped := 0, 0, 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var doc models.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			log.Printf("line %d: skipping malformed record: %v", line, err)
			skipped++
			continue
		}
		if doc.QuestionText == "" || doc.AnswerText == "" || doc.SourceName == "" {
			log.Printf("line %d: skipping incomplete record", line)
			skipped++
			continue
		}

		if doc.Language == "" || doc.Language == models.LanguageAuto {
			doc.Language = textnorm.DetectLanguage(doc.QuestionText)
		}

		normalized := textnorm.Normalize(doc.QuestionText, doc.Language)
		if normalized == "" {
			skipped++
			continue
		}

		now := time.Now().UTC()
		doc.ID = uuid.NewString()
		doc.ContentHash = utils.ContentHash(normalized)
		doc.IsActive = true
		doc.EmbeddingVersion = ""
		doc.CreatedAt = now
		doc.UpdatedAt = now

		if err := docs.Insert(ctx, &doc); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				duplicates++
				continue
			}
			log.Fatalf("line %d: insert failed: %v", line, err)
		}
		inserted++

		if asynqClient != nil {
			task, err := queue.NewIndexDocumentTask(doc.ID)
			if err == nil {
				if _, err := asynqClient.Enqueue(task); err != nil {
					log.Printf("line %d: enqueue failed (periodic sweep will pick it up): %v", line, err)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("read %s: %v", *inputPath, err)
	}

	fmt.Printf("Done. inserted=%d duplicates=%d skipped=%d\n", inserted, duplicates, skipped)
}
