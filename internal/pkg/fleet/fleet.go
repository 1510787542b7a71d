// Package fleet implements the Fleet Manager: the single broker
// connection, the device roster's live in-memory state, the bounded
// outbound/inbound queues, and the periodic reconciler.
package fleet

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"solarfleet-sim/internal/pkg/device"
	"solarfleet-sim/internal/pkg/envelope"
	"solarfleet-sim/internal/pkg/logger"
	"solarfleet-sim/internal/pkg/register"
	"solarfleet-sim/internal/pkg/store"
)

var (
	ErrAlreadyConnected = errors.New("fleet: already connected")
	ErrQueueFull        = errors.New("fleet: outbound queue full")
	ErrTopicCollision   = errors.New("fleet: subscribe topic collision")
)

const (
	outboundQueueDepth = 256
	inboundQueueDepth  = 256
	enqueueWaitTimeout = 500 * time.Millisecond
	reconcilePeriod    = 5 * time.Second
	minReconnectDelay  = 1 * time.Second
	maxReconnectDelay  = 30 * time.Second
)

type outboundTask struct {
	topic   string
	payload []byte
	qos     byte
}

type inboundTask struct {
	topic   string
	payload []byte
}

// Manager owns the broker connection and the live set of Devices.
type Manager struct {
	br    broker
	store *store.Store
	lc    logger.LoggingClient

	qos            byte
	reportInterval time.Duration

	mu         sync.Mutex // guards devices, registry and topicByEUI together
	devices    map[string]*device.Device
	registry   *register.Registry
	topicByEUI map[string]string

	outCh chan outboundTask
	inCh  chan inboundTask

	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	reconnectMu sync.Mutex
	reconnecting bool
}

// New constructs a Manager. The broker is not connected until Run is called.
func New(cfg BrokerConfig, st *store.Store, qos byte, reportInterval time.Duration, lc logger.LoggingClient) *Manager {
	m := &Manager{
		store:          st,
		lc:             lc,
		qos:            qos,
		reportInterval: reportInterval,
		devices:        make(map[string]*device.Device),
		registry:       register.New(),
		topicByEUI:     make(map[string]string),
		outCh:          make(chan outboundTask, outboundQueueDepth),
		inCh:           make(chan inboundTask, inboundQueueDepth),
		stopCh:         make(chan struct{}),
	}
	m.br = newPahoBroker(cfg, lc, m.onConnect, m.onConnectionLost)
	return m
}

// newWithBroker builds a Manager around an already-constructed broker,
// letting tests substitute a fake instead of dialing a real server.
func newWithBroker(br broker, st *store.Store, qos byte, reportInterval time.Duration, lc logger.LoggingClient) *Manager {
	return &Manager{
		br:             br,
		store:          st,
		lc:             lc,
		qos:            qos,
		reportInterval: reportInterval,
		devices:        make(map[string]*device.Device),
		registry:       register.New(),
		topicByEUI:     make(map[string]string),
		outCh:          make(chan outboundTask, outboundQueueDepth),
		inCh:           make(chan inboundTask, inboundQueueDepth),
		stopCh:         make(chan struct{}),
	}
}

// Run connects the broker, starts the sender/dispatcher/reconciler
// goroutines, and performs an initial reconcile pass.
func (m *Manager) Run() error {
	if err := m.br.Connect(); err != nil {
		return fmt.Errorf("fleet: connect: %w", err)
	}
	m.lc.Info("fleet manager connected to broker")

	m.wg.Add(3)
	go m.senderLoop()
	go m.dispatcherLoop()
	go m.reconcilerLoop()

	return m.Reconcile()
}

// Stop performs the orderly shutdown sequence: stop reconciler, stop
// reporters, drain outbound, disconnect.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })

	m.mu.Lock()
	devices := make([]*device.Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	m.mu.Unlock()

	for _, d := range devices {
		d.Stop()
	}

	m.wg.Wait()
	m.br.Disconnect()
}

func (m *Manager) onConnect() {
	m.lc.Info("fleet manager: broker connected, re-subscribing live devices")
	m.mu.Lock()
	topics := make([]string, 0, len(m.topicByEUI))
	for _, topic := range m.topicByEUI {
		topics = append(topics, topic)
	}
	m.mu.Unlock()

	for _, topic := range topics {
		if err := m.br.Subscribe(topic, m.qos, m.onMessage); err != nil {
			m.lc.Error(fmt.Sprintf("fleet manager: re-subscribe %s failed: %v", topic, err))
		}
	}
}

func (m *Manager) onConnectionLost(err error) {
	m.lc.Warn(fmt.Sprintf("fleet manager: connection lost: %v", err))

	m.reconnectMu.Lock()
	if m.reconnecting {
		m.reconnectMu.Unlock()
		return
	}
	m.reconnecting = true
	m.reconnectMu.Unlock()

	go m.reconnectLoop()
}

func (m *Manager) reconnectLoop() {
	defer func() {
		m.reconnectMu.Lock()
		m.reconnecting = false
		m.reconnectMu.Unlock()
	}()

	delay := minReconnectDelay
	for {
		select {
		case <-m.stopCh:
			return
		case <-time.After(delay):
		}

		if err := m.br.Connect(); err != nil {
			m.lc.Warn(fmt.Sprintf("fleet manager: reconnect attempt failed: %v", err))
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			continue
		}
		m.lc.Info("fleet manager: reconnected")
		return
	}
}

// Enqueue implements device.Publisher: it pushes onto the bounded
// outbound queue, blocking briefly under backpressure and failing
// fast once that grace period elapses.
func (m *Manager) Enqueue(topic string, payload []byte, qos byte) error {
	select {
	case m.outCh <- outboundTask{topic, payload, qos}:
		return nil
	case <-time.After(enqueueWaitTimeout):
		return ErrQueueFull
	}
}

// PublishRaw bypasses Device state and writes directly through the
// outbound queue; an escape hatch for tests and admin.
func (m *Manager) PublishRaw(topic string, payload []byte) error {
	return m.Enqueue(topic, payload, m.qos)
}

func (m *Manager) senderLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			// drain what's left without blocking forever
			for {
				select {
				case task := <-m.outCh:
					m.send(task)
				default:
					return
				}
			}
		case task := <-m.outCh:
			m.send(task)
		}
	}
}

func (m *Manager) send(task outboundTask) {
	if err := m.br.Publish(task.topic, task.qos, task.payload); err != nil {
		m.lc.Error(fmt.Sprintf("fleet manager: publish to %s failed: %v", task.topic, err))
	}
}

func (m *Manager) onMessage(topic string, payload []byte) {
	select {
	case m.inCh <- inboundTask{topic, payload}:
	default:
		m.lc.Warn(fmt.Sprintf("fleet manager: inbound queue full, dropping message on %s", topic))
	}
}

func (m *Manager) dispatcherLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		case task := <-m.inCh:
			m.dispatch(task)
		}
	}
}

func (m *Manager) dispatch(task inboundTask) {
	eui, raw, err := envelope.Unwrap(task.payload)
	if err != nil {
		m.lc.Warn(fmt.Sprintf("fleet manager: envelope error on %s: %v", task.topic, err))
		return
	}
	if !envelope.TopicMatchesEUI(task.topic, eui) {
		m.lc.Warn(fmt.Sprintf("fleet manager: devEui %s not found in topic %s, dropping", eui, task.topic))
		return
	}

	m.mu.Lock()
	d, ok := m.devices[eui]
	m.mu.Unlock()
	if !ok {
		m.lc.Warn(fmt.Sprintf("fleet manager: unknown device %s, dropping", eui))
		return
	}

	frame, err := decodeOrLog(raw, m.lc, eui)
	if err != nil {
		return
	}
	if err := d.HandleFrame(frame); err != nil {
		m.lc.Warn(fmt.Sprintf("fleet manager: device %s handler error: %v", eui, err))
	}
}
