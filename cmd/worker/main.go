package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"classattend/internal/attendance"
	"classattend/internal/config"
	"classattend/internal/queue"
	"classattend/internal/store"
)

// Worker drains the audit queue and writes the trail of committed
// check-ins. The API never blocks on this; the worker can be down
// without affecting check-ins.
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

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		log.Fatal("the audit worker needs a shared queue backend; set QUEUE_BACKEND=redis")
	}
	redisClient := store.NewRedis(cfg.RedisAddr)
	q = queue.NewRedisQueue(redisClient.Client, "classattend:audit")

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("audit worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != attendance.EventTypeCommitted {
			continue
		}

		var evt attendance.CommittedEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("malformed audit event dropped: %v", err)
			continue
		}

		log.Printf("audit: checkin %s committed for %s (session %s, course %s) at %s",
			evt.CheckInID, evt.MatricNumber, evt.SessionID, evt.CourseID,
			evt.FinalizedAt.Format("2006-01-02 15:04:05"))
	}

	log.Println("audit worker stopped")
}
