package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"siakad/internal/billing"
	"siakad/internal/config"
	"siakad/internal/notify"
	"siakad/internal/queue"
	"siakad/internal/roster"
	"siakad/internal/store"
)

// Worker delivers queued notifications and runs the monthly billing job.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(ctx, db.Client); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "siakad:notifications")
	}

	billSvc := billing.NewService(billing.NewRepository(db.Client), roster.NewRepository(db.Client))
	webhook := notify.New(cfg.NotifyWebhook, cfg.NotifySkip)

	go runBillingSchedule(ctx, billSvc, cfg.SPPAmount, cfg.SPPDueDay)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != "notify" {
			continue
		}

		var evt notify.Event
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("notification decode failed: %v", err)
			continue
		}

		// Best effort: a failed delivery is logged and dropped, never retried
		// into the path of the flows that queued it.
		if err := webhook.Send(ctx, evt); err != nil {
			log.Printf("notification delivery failed: %v", err)
		}
	}

	log.Println("worker stopped")
}

// runBillingSchedule fires the SPP generation job on the 1st of every month
// at 00:01. Generation is idempotent under the cycle title, so a worker
// restart or an extra fire re-skips everyone instead of double-billing.
func runBillingSchedule(ctx context.Context, svc *billing.Service, amount int64, dueDay int) {
	for {
		next := billing.NextRun(time.Now())
		log.Printf("next billing run at %s", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		def := billing.MonthlyCycle(time.Now(), amount, dueDay)
		res, err := svc.GenerateCycle(ctx, def)
		if err != nil {
			log.Printf("billing run %q failed: %v", def.Title, err)
			continue
		}
		log.Printf("billing run %q: created=%d skipped=%d failed=%d", res.Title, res.Created, res.Skipped, res.Failed)
	}
}
