package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const (
	DefaultCounterFlushInterval = 5 * time.Second
	DefaultExpiryInterval       = time.Minute
)

// CounterFlusher folds buffered counters into the database, e.g. *counter.Counters.
type CounterFlusher interface {
	FlushAll(ctx context.Context) error
}

// SubscriptionExpirer flips ended subscriptions to expired, e.g. *billing.Service.
type SubscriptionExpirer interface {
	ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error)
}

// Manager runs the job queue and the periodic maintenance tasks
type Manager struct {
	queue          *Queue
	counters       CounterFlusher
	expirer        SubscriptionExpirer
	now            func() time.Time
	flushInterval  time.Duration
	expiryInterval time.Duration

	counterFlushTicker *time.Ticker
	expiryTicker       *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithCounterFlushInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.flushInterval = d }
}

func WithExpiryInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.expiryInterval = d }
}

func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager. Any of queue, counters and expirer may be nil;
// the matching worker is not started then.
func NewManager(queue *Queue, counters CounterFlusher, expirer SubscriptionExpirer, opts ...ManagerOption) *Manager {
	m := &Manager{
		queue:          queue,
		counters:       counters,
		expirer:        expirer,
		now:            time.Now,
		flushInterval:  DefaultCounterFlushInterval,
		expiryInterval: DefaultExpiryInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	if m.queue != nil {
		m.queue.Start()
	}

	if m.counters != nil {
		m.counterFlushTicker = time.NewTicker(m.flushInterval)
		m.wg.Add(1)
		go m.counterFlushWorker(m.stopCh, m.counterFlushTicker)
	}

	if m.expirer != nil {
		m.expiryTicker = time.NewTicker(m.expiryInterval)
		m.wg.Add(1)
		go m.expiryWorker(m.stopCh, m.expiryTicker)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks. Buffered counters are
// flushed one last time.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}
	if m.expiryTicker != nil {
		m.expiryTicker.Stop()
	}

	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	m.wg.Wait()

	if m.queue != nil {
		m.queue.Stop()
	}
	if m.counters != nil {
		if err := m.FlushCountersOnce(context.Background()); err != nil {
			log.Errorf("[JobQueue Manager] Final counter flush error: %v", err)
		}
	}

	log.Info("[JobQueue Manager] Stopped successfully")
}

// counterFlushWorker periodically flushes counters from Redis to DB
func (m *Manager) counterFlushWorker(stopCh chan struct{}, ticker *time.Ticker) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-ticker.C:
			if err := m.FlushCountersOnce(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
			}
		}
	}
}

// expiryWorker periodically expires ended subscriptions
func (m *Manager) expiryWorker(stopCh chan struct{}, ticker *time.Ticker) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started expiry worker (interval: %s)", m.expiryInterval)
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Expiry worker stopping")
			return
		case <-ticker.C:
			if _, err := m.ExpireSubscriptionsOnce(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Subscription expiry error: %v", err)
			}
		}
	}
}

// FlushCountersOnce runs a single counter flush
func (m *Manager) FlushCountersOnce(ctx context.Context) error {
	if m.counters == nil {
		return nil
	}
	return m.counters.FlushAll(ctx)
}

// ExpireSubscriptionsOnce runs a single expiry pass
func (m *Manager) ExpireSubscriptionsOnce(ctx context.Context) (int64, error) {
	if m.expirer == nil {
		return 0, nil
	}
	return m.expirer.ExpireSubscriptions(ctx, m.now())
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
