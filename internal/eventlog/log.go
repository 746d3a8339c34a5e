package eventlog

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	bufferSize           = 1024                   // circular buffer size
	maxEventsPerSec      = 10000                  // global rate limit
	maxEventsPerPlayer   = 100                    // per-player rate limit per second
	batchFlushSize       = 64                     // events per batch write
	batchFlushInterval   = 100 * time.Millisecond // how often to flush
	playerLimiterCleanup = 5 * time.Minute        // cleanup interval for stale limiters
)

// Log is a bounded, rate-limited, asynchronously flushed audit trail. A
// single instance is shared by every world the engine runs, so producers are
// concurrent (one goroutine per world tick) while the writer is a single
// consumer.
type Log struct {
	buffer    [bufferSize]Event
	writeHead uint64 // atomic, producer position
	readHead  uint64 // atomic, consumer position

	globalLimiter  *rate.Limiter
	playerLimiters sync.Map // map[string]*playerLimiterEntry

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	filePath string
	file     *os.File
	fileMu   sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

type playerLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// New creates a Log that is not yet running; call Start to begin flushing.
func New() *Log {
	return &Log{
		globalLimiter: rate.NewLimiter(maxEventsPerSec, maxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens filePath (if non-empty) for append and begins the background
// writer and limiter-cleanup goroutines. A no-op if already running.
func (l *Log) Start(filePath string) error {
	if l.running.Load() {
		return nil
	}

	l.filePath = filePath

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		l.file = file
	}

	l.running.Store(true)
	l.writerWg.Add(2)
	go l.writerLoop()
	go l.cleanupLoop()

	return nil
}

// Stop flushes remaining events and closes the output file.
func (l *Log) Stop() {
	l.stopOnce.Do(func() {
		l.running.Store(false)
		close(l.stopChan)
		l.writerWg.Wait()

		l.fileMu.Lock()
		if l.file != nil {
			l.file.Close()
		}
		l.fileMu.Unlock()
	})
}

// Emit enqueues event, subject to global and per-player rate limits. Returns
// false if the event was dropped (rate limited or buffer pressure); this is
// expected and intentional under load — the log trades completeness for
// bounded memory and CPU.
func (l *Log) Emit(event Event) bool {
	if !l.running.Load() {
		return false
	}

	if !l.globalLimiter.Allow() {
		atomic.AddUint64(&l.droppedCount, 1)
		return false
	}

	if event.PlayerID != "" {
		limiter := l.getPlayerLimiter(event.PlayerID)
		if !limiter.Allow() {
			atomic.AddUint64(&l.droppedCount, 1)
			return false
		}
	}

	head := atomic.AddUint64(&l.writeHead, 1)
	tail := atomic.LoadUint64(&l.readHead)

	if head-tail >= bufferSize {
		atomic.AddUint64(&l.readHead, 1)
		atomic.AddUint64(&l.droppedCount, 1)
	}

	event.Sequence = head
	idx := head % bufferSize
	l.buffer[idx] = event

	atomic.AddUint64(&l.totalCount, 1)
	return true
}

// EmitSimple builds and emits an event in one call.
func (l *Log) EmitSimple(eventType EventType, worldID string, tickNum uint64, playerID string, payload interface{}) bool {
	return l.Emit(NewEvent(eventType, worldID, tickNum, playerID, payload))
}

func (l *Log) getPlayerLimiter(playerID string) *rate.Limiter {
	if entry, ok := l.playerLimiters.Load(playerID); ok {
		e := entry.(*playerLimiterEntry)
		e.lastUsed = time.Now()
		return e.limiter
	}

	entry := &playerLimiterEntry{
		limiter:  rate.NewLimiter(maxEventsPerPlayer, maxEventsPerPlayer/10),
		lastUsed: time.Now(),
	}
	actual, _ := l.playerLimiters.LoadOrStore(playerID, entry)
	return actual.(*playerLimiterEntry).limiter
}

func (l *Log) writerLoop() {
	defer l.writerWg.Done()

	ticker := time.NewTicker(batchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, batchFlushSize)

	for {
		select {
		case <-l.stopChan:
			batch = l.collectBatch(batch[:0])
			if len(batch) > 0 {
				l.flushBatch(batch)
			}
			return
		case <-ticker.C:
			batch = l.collectBatch(batch[:0])
			if len(batch) > 0 {
				l.flushBatch(batch)
			}
		}
	}
}

func (l *Log) cleanupLoop() {
	defer l.writerWg.Done()

	ticker := time.NewTicker(playerLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.cleanupPlayerLimiters()
		}
	}
}

func (l *Log) cleanupPlayerLimiters() {
	cutoff := time.Now().Add(-playerLimiterCleanup)
	l.playerLimiters.Range(func(key, value interface{}) bool {
		entry := value.(*playerLimiterEntry)
		if entry.lastUsed.Before(cutoff) {
			l.playerLimiters.Delete(key)
		}
		return true
	})
}

func (l *Log) collectBatch(batch []Event) []Event {
	head := atomic.LoadUint64(&l.writeHead)
	tail := atomic.LoadUint64(&l.readHead)

	for i := tail; i < head && len(batch) < batchFlushSize; i++ {
		idx := i % bufferSize
		batch = append(batch, l.buffer[idx])
	}

	if len(batch) > 0 {
		atomic.AddUint64(&l.readHead, uint64(len(batch)))
	}

	return batch
}

func (l *Log) flushBatch(batch []Event) {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	if l.file == nil {
		return
	}

	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		l.file.Write(data)
		l.file.Write([]byte("\n"))
	}
}

// Stats reports log health for the admin/metrics surface.
type Stats struct {
	Total   uint64
	Dropped uint64
	Pending uint64
	Running bool
}

// GetStats returns current counters.
func (l *Log) GetStats() Stats {
	head := atomic.LoadUint64(&l.writeHead)
	tail := atomic.LoadUint64(&l.readHead)

	return Stats{
		Total:   atomic.LoadUint64(&l.totalCount),
		Dropped: atomic.LoadUint64(&l.droppedCount),
		Pending: head - tail,
		Running: l.running.Load(),
	}
}

// GetDroppedCount returns the number of events dropped for rate limiting or
// buffer pressure.
func (l *Log) GetDroppedCount() uint64 {
	return atomic.LoadUint64(&l.droppedCount)
}

// GetTotalCount returns the total number of events accepted.
func (l *Log) GetTotalCount() uint64 {
	return atomic.LoadUint64(&l.totalCount)
}
