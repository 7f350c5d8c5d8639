package alert

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// Alerter receives important relay events. Implementations must not block.
type Alerter interface {
	Important(event string, fields map[string]string)
}

const (
	defaultQueueSize          = 128
	defaultDropReportInterval = time.Minute
	notifyTimeout             = 20 * time.Second
)

type ManagerOptions struct {
	QueueSize          int
	DropReportInterval time.Duration
}

// Manager delivers alerts asynchronously through a bounded queue.
// Events that do not fit are dropped and counted.
type Manager struct {
	source   string
	notifier Notifier
	queue    chan alertEvent
	stop     chan struct{}
	done     chan struct{}
	interval time.Duration

	droppedTotal  atomic.Uint64
	droppedWindow atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

type alertEvent struct {
	at     time.Time
	event  string
	fields map[string]string
}

func NewManager(source string, notifier Notifier) *Manager {
	return NewManagerWithOptions(source, notifier, ManagerOptions{
		QueueSize:          defaultQueueSize,
		DropReportInterval: defaultDropReportInterval,
	})
}

func NewManagerWithOptions(source string, notifier Notifier, opts ManagerOptions) *Manager {
	if notifier == nil {
		return nil
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	interval := opts.DropReportInterval
	if interval < 0 {
		interval = 0
	}
	m := &Manager{
		source:   source,
		notifier: notifier,
		queue:    make(chan alertEvent, size),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		interval: interval,
	}
	go m.run()
	return m
}

func (m *Manager) Important(event string, fields map[string]string) {
	if m == nil {
		return
	}
	ev := alertEvent{at: time.Now().UTC(), event: event, fields: cloneFields(fields)}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- ev:
	default:
		total := m.droppedTotal.Add(1)
		if m.droppedWindow.Add(1) == 1 {
			log.Printf("level=WARN event=alert_dropped target_event=%q dropped_total=%d queue_cap=%d", event, total, cap(m.queue))
		}
	}
}

// Close stops intake and waits for queued alerts to be delivered.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.stop)
	}
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) run() {
	defer close(m.done)
	var tick <-chan time.Time
	if m.interval > 0 {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case ev := <-m.queue:
			m.deliver(ev)
		case <-tick:
			m.reportDropped()
		case <-m.stop:
			for {
				select {
				case ev := <-m.queue:
					m.deliver(ev)
				default:
					m.reportDropped()
					return
				}
			}
		}
	}
}

func (m *Manager) reportDropped() {
	n := m.droppedWindow.Swap(0)
	if n == 0 {
		return
	}
	log.Printf("level=WARN event=alert_dropped_report dropped_since_last=%d dropped_total=%d", n, m.droppedTotal.Load())
}

func (m *Manager) deliver(ev alertEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := m.notifier.Notify(ctx, m.format(ev)); err != nil {
		log.Printf("level=ERROR event=alert_notify_failed target_event=%q err=%q", ev.event, err.Error())
	}
}

func (m *Manager) format(ev alertEvent) string {
	var b strings.Builder
	b.WriteString("[" + m.source + "] " + ev.event + "\n")
	b.WriteString("time: " + ev.at.Format(time.RFC3339))
	keys := make([]string, 0, len(ev.fields))
	for k := range ev.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("\n" + k + ": " + ev.fields[k])
	}
	return b.String()
}

func cloneFields(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
