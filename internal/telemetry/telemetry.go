// Package telemetry pushes annotation activity to InfluxDB so a lab can
// watch labelling throughput across operators. It is optional: when disabled
// or unreachable every write is a no-op, and a failing write never fails the
// commit that produced it.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	Client  influxdb2.Client
	Writer  influxdb2_api.WriteAPI
	IsValid bool
	Logger  zerolog.Logger
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		IsValid: false,
		Logger:  log,
	}
}

// Connect establishes a connection to InfluxDB using viper config.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(100).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Err(err).Msg("InfluxDB unreachable, annotation telemetry disabled")
		return fmt.Errorf("failed to ping InfluxDB: %v", err)
	}

	m.Writer = m.Client.WriteAPI(
		viper.GetString("influx.org"),
		viper.GetString("influx.bucket"),
	)

	// drain async write errors into the log
	go func() {
		for err := range m.Writer.Errors() {
			m.Logger.Error().Err(err).Msg("InfluxDB write failed")
		}
	}()

	m.IsValid = true
	m.Logger.Info().Msg("Connected to InfluxDB")
	return nil
}

// WriteCommit records one marker commit. No-op when the connection is not
// valid; never returns an error so a telemetry outage cannot fail a commit.
func (m *Manager) WriteCommit(subject string, trial int, event string, relFrame int, camID, landmark, op string, x, y float64, took time.Duration) {
	if !m.IsValid || m.Writer == nil {
		return
	}

	point := influxdb2.NewPoint(
		"annotation",
		map[string]string{
			"subject":  subject,
			"trial":    fmt.Sprintf("%d", trial),
			"event":    event,
			"cam":      camID,
			"landmark": landmark,
			"op":       op,
		},
		map[string]interface{}{
			"relative_frame": relFrame,
			"x":              x,
			"y":              y,
			"duration_ms":    float64(took.Microseconds()) / 1000.0,
		},
		time.Now(),
	)
	m.Writer.WritePoint(point)
}

// Close flushes pending points and shuts the client down.
func (m *Manager) Close() {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	m.IsValid = false
}
