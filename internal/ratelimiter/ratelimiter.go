package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
	queueSize       = 1000
	pruneEvery      = 256
)

// SendFunc performs one outgoing call to a chat.
type SendFunc func(ctx context.Context) error

type job struct {
	ctx    context.Context
	chatID int64
	send   SendFunc
	done   chan error
}

// RateLimiter runs outgoing calls one at a time and keeps the minimum spacing
// Telegram allows between messages to the same chat.
type RateLimiter struct {
	jobs     chan job
	mu       sync.Mutex
	lastSent map[int64]time.Time
	handled  int
	ctx      context.Context
	cancel   context.CancelFunc
	log      *slog.Logger
}

func New(log *slog.Logger) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		jobs:     make(chan job, queueSize),
		lastSent: make(map[int64]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}

	go rl.run()

	return rl
}

// Send queues send for chatID and waits for its result.
func (rl *RateLimiter) Send(ctx context.Context, chatID int64, send SendFunc) error {
	j := job{
		ctx:    ctx,
		chatID: chatID,
		send:   send,
		done:   make(chan error, 1),
	}

	select {
	case rl.jobs <- j:
	case <-rl.ctx.Done():
		return rl.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.done:
		return err
	case <-rl.ctx.Done():
		return rl.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rl *RateLimiter) Stop() {
	rl.cancel()
}

func (rl *RateLimiter) run() {
	for {
		select {
		case j := <-rl.jobs:
			j.done <- rl.execute(j)
		case <-rl.ctx.Done():
			rl.drain()
			return
		}
	}
}

func (rl *RateLimiter) drain() {
	for {
		select {
		case j := <-rl.jobs:
			j.done <- rl.ctx.Err()
		default:
			return
		}
	}
}

func (rl *RateLimiter) execute(j job) error {
	if err := rl.ctx.Err(); err != nil {
		return err
	}

	if err := j.ctx.Err(); err != nil {
		return err
	}

	if err := rl.wait(j); err != nil {
		return err
	}

	err := j.send(j.ctx)
	rl.markSent(j.chatID, time.Now())

	return err
}

// wait blocks until chatID may receive the next message.
func (rl *RateLimiter) wait(j job) error {
	rl.mu.Lock()
	lastSent, ok := rl.lastSent[j.chatID]
	rl.mu.Unlock()

	if !ok {
		return nil
	}

	delay := getDelay(j.chatID, lastSent)
	if delay == 0 {
		return nil
	}

	rl.log.DebugContext(j.ctx, "Rate limiting message",
		"chatID", j.chatID,
		"delay", delay,
		"queueLen", len(rl.jobs))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-rl.ctx.Done():
		return rl.ctx.Err()
	case <-j.ctx.Done():
		return j.ctx.Err()
	}
}

func (rl *RateLimiter) markSent(chatID int64, at time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lastSent[chatID] = at
	rl.handled++

	if rl.handled%pruneEvery != 0 {
		return
	}

	for id, sent := range rl.lastSent {
		if getDelay(id, sent) == 0 {
			delete(rl.lastSent, id)
		}
	}
}

func getDelay(chatID int64, lastSent time.Time) time.Duration {
	return max(getRate(chatID)-time.Since(lastSent), 0)
}

func getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}
	return privateChatRate
}
