package main

import (
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/config"
	"github.com/tahahayali/type-int--disasterRecovery/internal/logger"
	"github.com/tahahayali/type-int--disasterRecovery/internal/mqtt"
	"github.com/tahahayali/type-int--disasterRecovery/internal/wire"
)

// Developer tool: simulates registered field devices emitting encoded
// frames, either synchronously over HTTP (/api/byte_string) or through the
// MQTT gateway path.

type simDevice struct {
	tag      string
	senderID uint32
	lat      float64
	lon      float64
	battery  int
	msgID    uint32
}

func main() {
	mode := flag.String("mode", "http", "submission mode: http or mqtt")
	server := flag.String("server", "http://localhost:5000", "telemetry server base URL (http mode)")
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker URL (mqtt mode)")
	devices := flag.Int("devices", 5, "number of simulated devices")
	interval := flag.Duration("interval", 10*time.Second, "delay between emission rounds")
	register := flag.Bool("register", true, "register devices over HTTP before emitting")
	flag.Parse()

	zlog, err := logger.NewLogger("info", "console", "device-simulator")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	rand.Seed(time.Now().UnixNano())

	// Disaster zone centered on downtown Buffalo, NY.
	const centerLat, centerLon = 42.8864, -78.8784

	sims := make([]*simDevice, 0, *devices)
	for i := 0; i < *devices; i++ {
		tag := fmt.Sprintf("S%03d", i+1)
		sims = append(sims, &simDevice{
			tag:      tag,
			senderID: binary.BigEndian.Uint32([]byte(tag)),
			lat:      centerLat + (rand.Float64()-0.5)*0.05,
			lon:      centerLon + (rand.Float64()-0.5)*0.05,
			battery:  60 + rand.Intn(40),
			msgID:    uint32(i) << 16,
		})
	}

	httpClient := resty.New().
		SetBaseURL(*server).
		SetTimeout(10 * time.Second).
		SetRetryCount(2)

	if *register {
		registerDevices(httpClient, sims, zlog)
	}

	var mqttClient *mqtt.Client
	if *mode == "mqtt" {
		mqttCfg := &config.MQTTConfig{
			Broker:   *broker,
			ClientID: "device-simulator",
		}
		mqttClient, err = mqtt.NewClient(mqttCfg, zlog)
		if err != nil {
			zlog.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		defer mqttClient.Disconnect()
	}

	zlog.Info("Simulator started",
		zap.String("mode", *mode),
		zap.Int("devices", len(sims)),
		zap.Duration("interval", *interval),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		frames := make([]string, 0, len(sims))
		for _, d := range sims {
			frames = append(frames, d.nextFrame())
		}

		switch *mode {
		case "mqtt":
			for _, frame := range frames {
				topic := "disaster/gateway/sim/frames"
				if err := mqttClient.Publish(topic, 1, false, []byte(frame)); err != nil {
					zlog.Error("Failed to publish frame", zap.Error(err))
				}
			}
			zlog.Info("Published frames", zap.Int("count", len(frames)))
		default:
			resp, err := httpClient.R().
				SetBody(map[string]any{"messages": frames}).
				Post("/api/byte_string")
			if err != nil {
				zlog.Error("Failed to submit batch", zap.Error(err))
			} else {
				zlog.Info("Submitted batch",
					zap.Int("count", len(frames)),
					zap.Int("status", resp.StatusCode()),
				)
			}
		}

		select {
		case sig := <-sigChan:
			zlog.Info("Received signal, stopping", zap.String("signal", sig.String()))
			return
		case <-ticker.C:
		}
	}
}

func registerDevices(client *resty.Client, sims []*simDevice, zlog *zap.Logger) {
	for i, d := range sims {
		personType := "victim"
		if i%4 == 0 {
			personType = "first_responder"
		}
		resp, err := client.R().
			SetBody(map[string]any{
				"device_id": d.tag,
				"type":      personType,
				"name":      "Simulated " + d.tag,
			}).
			Post("/api/devices")
		if err != nil {
			zlog.Warn("Failed to register device", zap.String("device_id", d.tag), zap.Error(err))
			continue
		}
		// 409 just means a previous run already registered it.
		zlog.Info("Registered device",
			zap.String("device_id", d.tag),
			zap.Int("status", resp.StatusCode()),
		)
	}
}

// nextFrame produces the device's next encoded message: mostly location
// pings with occasional battery, questionnaire, text, and heartbeat
// traffic.
func (d *simDevice) nextFrame() string {
	d.msgID++
	msg := wire.Message{
		MessageID: d.msgID,
		SenderID:  d.senderID,
		Timestamp: uint32(time.Now().Unix()),
	}

	switch rand.Intn(10) {
	case 0:
		d.battery -= rand.Intn(2)
		if d.battery < 1 {
			d.battery = 1
		}
		msg.PayloadType = wire.PayloadTypeBattery
		msg.Payload, _ = wire.EncodeBattery(d.battery, d.battery*600)
	case 1:
		msg.PayloadType = wire.PayloadTypeQuestionnaire
		flags := make([]byte, wire.PayloadLength)
		for i := range flags {
			flags[i] = '0' + byte(rand.Intn(2))
		}
		msg.Payload, _ = wire.EncodeQuestionnaire(string(flags))
	case 2:
		msg.PayloadType = wire.PayloadTypeText
		msg.Payload, _ = wire.EncodeText([]string{"OK", "HELP", "SAFE", "WATER"}[rand.Intn(4)])
	case 3:
		msg.PayloadType = wire.PayloadTypeHeartbeat
	default:
		// Clamp the walk so the coordinates stay encodable.
		d.lat = clamp(d.lat+(rand.Float64()-0.5)*0.001, -90, 90)
		d.lon = clamp(d.lon+(rand.Float64()-0.5)*0.001, -180, 180)
		msg.PayloadType = wire.PayloadTypeLocation
		msg.Payload, _ = wire.EncodeLocation(d.lat, d.lon)
	}

	return hex.EncodeToString(wire.Encode(msg))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
