package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ps2841/horpak-billing/models"
)

// MQTTCollector subscribes to smart meters that publish their absolute
// register value (m3 for water, kWh for electric) over MQTT.
type MQTTCollector struct {
	db      *sql.DB
	manager *CollectorManager

	mu      sync.RWMutex
	clients map[string]mqtt.Client          // broker URL -> client
	topics  map[string][]models.MeterSource // broker URL -> sources
}

// MQTTConfig is the connection_config JSON of an mqtt source.
type MQTTConfig struct {
	Broker   string `json:"broker"`
	Topic    string `json:"topic"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// meterPayload is the JSON some meters publish; others send a bare number.
// Value is a pointer so a published zero register stays distinguishable from
// an absent field.
type meterPayload struct {
	Value *float64 `json:"value"`
}

func NewMQTTCollector(db *sql.DB, manager *CollectorManager) *MQTTCollector {
	return &MQTTCollector{
		db:      db,
		manager: manager,
		clients: make(map[string]mqtt.Client),
		topics:  make(map[string][]models.MeterSource),
	}
}

func (mc *MQTTCollector) Start() {
	sources, err := mc.manager.loadSources("mqtt")
	if err != nil {
		log.Printf("ERROR: Failed to load MQTT sources: %v", err)
		return
	}
	if len(sources) == 0 {
		log.Println("MQTT collector: no sources configured")
		return
	}

	// Group sources by broker so each broker gets one connection
	byBroker := make(map[string][]brokerSource)
	for _, source := range sources {
		var cfg MQTTConfig
		if err := json.Unmarshal([]byte(source.ConnectionConfig), &cfg); err != nil {
			log.Printf("ERROR: Source %d has invalid MQTT config: %v", source.ID, err)
			continue
		}
		if cfg.Broker == "" || cfg.Topic == "" {
			log.Printf("ERROR: Source %d is missing broker or topic", source.ID)
			continue
		}
		byBroker[cfg.Broker] = append(byBroker[cfg.Broker], brokerSource{source: source, cfg: cfg})
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	for broker, brokerSources := range byBroker {
		mc.connectBroker(broker, brokerSources)
	}
}

type brokerSource struct {
	source models.MeterSource
	cfg    MQTTConfig
}

// mismatchedCredentials lists sources whose username or password differ from
// the first source on the same broker.
func mismatchedCredentials(sources []brokerSource) []int {
	var ids []int
	for _, bs := range sources[1:] {
		if bs.cfg.Username != sources[0].cfg.Username || bs.cfg.Password != sources[0].cfg.Password {
			ids = append(ids, bs.source.ID)
		}
	}
	return ids
}

func (mc *MQTTCollector) connectBroker(broker string, sources []brokerSource) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("horpak-billing-" + strconv.FormatInt(time.Now().UnixNano(), 36)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(30 * time.Second)

	// One connection per broker, so only one credential set can apply
	for _, id := range mismatchedCredentials(sources) {
		log.Printf("WARNING: Source %d configures different credentials for broker %s; using source %d's",
			id, broker, sources[0].source.ID)
	}
	if sources[0].cfg.Username != "" {
		opts.SetUsername(sources[0].cfg.Username)
		opts.SetPassword(sources[0].cfg.Password)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Printf("MQTT connected to %s, subscribing %d topics", broker, len(sources))
		for _, bs := range sources {
			bs := bs
			token := client.Subscribe(bs.cfg.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
				mc.handleMessage(bs.source, msg.Payload())
			})
			if token.Wait() && token.Error() != nil {
				log.Printf("ERROR: Subscribe %s failed: %v", bs.cfg.Topic, token.Error())
			}
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("MQTT connection to %s lost: %v", broker, err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("ERROR: MQTT connect to %s failed: %v", broker, token.Error())
		return
	}

	mc.clients[broker] = client
	srcs := make([]models.MeterSource, len(sources))
	for i, bs := range sources {
		srcs[i] = bs.source
	}
	mc.topics[broker] = srcs
}

func (mc *MQTTCollector) handleMessage(source models.MeterSource, payload []byte) {
	value, ok := parseMeterPayload(payload)
	if !ok {
		log.Printf("WARNING: Source %d sent unparsable payload: %s", source.ID, payload)
		return
	}
	mc.manager.HandleReading(source, value)
}

// parseMeterPayload accepts either {"value": 123.4} or a bare number.
func parseMeterPayload(payload []byte) (float64, bool) {
	var msg meterPayload
	if err := json.Unmarshal(payload, &msg); err == nil && msg.Value != nil {
		return *msg.Value, true
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func (mc *MQTTCollector) Stop() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for broker, client := range mc.clients {
		client.Disconnect(250)
		delete(mc.clients, broker)
		delete(mc.topics, broker)
	}
}

func (mc *MQTTCollector) Reload() {
	mc.Stop()
	mc.Start()
}

func (mc *MQTTCollector) DebugInfo() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	brokers := make(map[string]interface{})
	for broker, client := range mc.clients {
		brokers[broker] = map[string]interface{}{
			"connected": client.IsConnected(),
			"sources":   len(mc.topics[broker]),
		}
	}
	return map[string]interface{}{"brokers": brokers}
}
