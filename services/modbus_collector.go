package services

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/ps2841/horpak-billing/models"
)

const modbusPollInterval = 15 * time.Minute

// ModbusCollector polls Modbus TCP electric meters for their energy
// register on a fixed interval.
type ModbusCollector struct {
	db      *sql.DB
	manager *CollectorManager

	mu       sync.Mutex
	clients  map[int]*modbusClient // source id -> client
	stopChan chan struct{}
	running  bool
}

// ModbusConfig is the connection_config JSON of a modbus source.
type ModbusConfig struct {
	IPAddress       string `json:"ip_address"`
	Port            int    `json:"port"`
	RegisterAddress uint16 `json:"register_address"`
	RegisterCount   uint16 `json:"register_count"`
	UnitID          byte   `json:"unit_id"`
	// Divide the raw register by this to get m3 / kWh (e.g. 1000 for Wh)
	Scale float64 `json:"scale"`
}

type modbusClient struct {
	source    models.MeterSource
	cfg       ModbusConfig
	handler   *modbus.TCPClientHandler
	client    modbus.Client
	lastError string
}

func NewModbusCollector(db *sql.DB, manager *CollectorManager) *ModbusCollector {
	return &ModbusCollector{
		db:      db,
		manager: manager,
		clients: make(map[int]*modbusClient),
	}
}

func (mc *ModbusCollector) Start() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.running {
		return
	}

	sources, err := mc.manager.loadSources("modbus")
	if err != nil {
		log.Printf("ERROR: Failed to load Modbus sources: %v", err)
		return
	}
	if len(sources) == 0 {
		log.Println("Modbus collector: no sources configured")
		return
	}

	for _, source := range sources {
		var cfg ModbusConfig
		if err := json.Unmarshal([]byte(source.ConnectionConfig), &cfg); err != nil {
			log.Printf("ERROR: Source %d has invalid Modbus config: %v", source.ID, err)
			continue
		}
		if cfg.Port == 0 {
			cfg.Port = 502
		}
		if cfg.RegisterCount == 0 {
			cfg.RegisterCount = 2
		}
		if cfg.Scale == 0 {
			cfg.Scale = 1
		}

		handler := modbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", cfg.IPAddress, cfg.Port))
		handler.Timeout = 10 * time.Second
		handler.SlaveId = cfg.UnitID

		mc.clients[source.ID] = &modbusClient{
			source:  source,
			cfg:     cfg,
			handler: handler,
			client:  modbus.NewClient(handler),
		}
	}

	mc.stopChan = make(chan struct{})
	mc.running = true
	go mc.pollLoop(mc.stopChan)
	log.Printf("Modbus collector started with %d meters, polling every %v", len(mc.clients), modbusPollInterval)
}

func (mc *ModbusCollector) pollLoop(stop chan struct{}) {
	mc.pollAll()

	ticker := time.NewTicker(modbusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.pollAll()
		case <-stop:
			return
		}
	}
}

func (mc *ModbusCollector) pollAll() {
	mc.mu.Lock()
	clients := make([]*modbusClient, 0, len(mc.clients))
	for _, c := range mc.clients {
		clients = append(clients, c)
	}
	mc.mu.Unlock()

	for _, c := range clients {
		value, err := mc.readMeter(c)
		if err != nil {
			c.lastError = err.Error()
			log.Printf("ERROR: Modbus read failed for source %d (%s): %v",
				c.source.ID, c.handler.Address, err)
			continue
		}
		c.lastError = ""
		mc.manager.HandleReading(c.source, value)
	}
}

// readMeter reads the configured holding registers and decodes them as a
// big-endian float32 (2 registers) or uint32, scaled to meter units.
func (mc *ModbusCollector) readMeter(c *modbusClient) (float64, error) {
	results, err := c.client.ReadHoldingRegisters(c.cfg.RegisterAddress, c.cfg.RegisterCount)
	if err != nil {
		return 0, err
	}
	if len(results) < 4 {
		return 0, fmt.Errorf("short register read: %d bytes", len(results))
	}

	raw := binary.BigEndian.Uint32(results[:4])
	value := float64(math.Float32frombits(raw))
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		// Meters that expose a plain counter instead of a float
		value = float64(raw)
	}

	return value / c.cfg.Scale, nil
}

func (mc *ModbusCollector) Stop() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if !mc.running {
		return
	}
	close(mc.stopChan)
	for id, c := range mc.clients {
		c.handler.Close()
		delete(mc.clients, id)
	}
	mc.running = false
}

func (mc *ModbusCollector) Reload() {
	mc.Stop()
	mc.Start()
}

func (mc *ModbusCollector) DebugInfo() map[string]interface{} {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	meters := make(map[string]interface{})
	for id, c := range mc.clients {
		meters[fmt.Sprintf("%d", id)] = map[string]interface{}{
			"address":    c.handler.Address,
			"last_error": c.lastError,
		}
	}
	return map[string]interface{}{
		"running": mc.running,
		"meters":  meters,
	}
}
