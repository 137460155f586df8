package engine

import (
	"log"
	"time"

	"trackcore/config"
	"trackcore/eta"
	"trackcore/lifecycle"
	"trackcore/messaging"
	"trackcore/store"
	"trackcore/tracking"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	Mirror     tracking.SnapshotMirror
	MsgClient  *messaging.Client
	LogFunc    LogFunc
	Debug      bool
}

// Engine is the composition root: it owns the lifecycle machine, the
// tracking broker, and the messaging plumbing between them.
type Engine struct {
	cfg        *config.Config
	configPath string
	db         *store.DB
	mirror     tracking.SnapshotMirror
	msgClient  *messaging.Client
	machine    *lifecycle.Machine
	broker     *tracking.Broker
	drainer    *messaging.OutboxDrainer
	ingest     *messaging.LocationIngest
	Events     *EventBus
	logFn      LogFunc
	stopChan   chan struct{}

	kafkaUp bool
	mqttUp  bool
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}

	e := &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		mirror:     c.Mirror,
		msgClient:  c.MsgClient,
		Events:     NewEventBus(),
		logFn:      logFn,
		stopChan:   make(chan struct{}),
	}

	e.machine = lifecycle.NewMachine(c.DB, &statusEmitter{bus: e.Events})

	estimator := eta.NewEstimator(c.AppConfig.Tracking.SmoothingWeight)
	e.broker = tracking.NewBroker(
		&orderSource{db: c.DB},
		&sampleSink{db: c.DB},
		c.Mirror,
		estimator,
		c.AppConfig.Tracking.IdleTimeout,
		c.AppConfig.Tracking.SweepInterval,
	)

	if c.MsgClient != nil {
		e.drainer = messaging.NewOutboxDrainer(c.DB, c.MsgClient, c.AppConfig.Messaging.OutboxDrainInterval)
		e.ingest = messaging.NewLocationIngest(c.MsgClient, c.AppConfig.Messaging.LocationTopicFilter, e.broker)
	}

	return e
}

func (e *Engine) Start() {
	e.wireEventHandlers()

	e.broker.Start()

	if e.drainer != nil {
		e.drainer.Start()
	}
	if e.ingest != nil && e.msgClient.MQTTConnected() {
		if err := e.ingest.Start(); err != nil {
			e.logFn("engine: location ingest: %v", err)
		}
	}

	e.checkConnectionStatus()
	go e.connectionHealthLoop()

	e.logFn("engine: started")
}

func (e *Engine) Stop() {
	select {
	case e.stopChan <- struct{}{}:
	default:
	}
	if e.drainer != nil {
		e.drainer.Stop()
	}
	e.broker.Stop()
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB                { return e.db }
func (e *Engine) AppConfig() *config.Config    { return e.cfg }
func (e *Engine) ConfigPath() string           { return e.configPath }
func (e *Engine) Machine() *lifecycle.Machine  { return e.machine }
func (e *Engine) Broker() *tracking.Broker     { return e.broker }
func (e *Engine) MsgClient() *messaging.Client { return e.msgClient }

func (e *Engine) checkConnectionStatus() {
	if e.msgClient == nil {
		return
	}

	if e.msgClient.KafkaConnected() {
		if !e.kafkaUp {
			e.kafkaUp = true
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "kafka connected"}})
		}
	} else if e.kafkaUp {
		e.kafkaUp = false
		e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "kafka disconnected"}})
	}

	if e.msgClient.MQTTConnected() {
		if !e.mqttUp {
			e.mqttUp = true
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "mqtt connected"}})
		}
	} else if e.mqttUp {
		e.mqttUp = false
		e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "mqtt disconnected"}})
	}
}

func (e *Engine) connectionHealthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}
