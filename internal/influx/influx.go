// Package influx exports telemetry samples to InfluxDB when enabled.
// Export is advisory: a down InfluxDB never affects ingestion.
package influx

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Buckets used by the telemetry service.
const (
	BucketPlayerCounts = "player_counts"
	BucketIngest       = "ingest_metrics"
)

// DefaultBucketNames are the InfluxDB buckets ensured at connect time.
var DefaultBucketNames = []string{
	BucketPlayerCounts,
	BucketIngest,
}

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client      influxdb2.Client
	Writers     map[string]influxdb2_api.WriteAPI
	IsValid     bool
	BucketNames []string
	Logger      zerolog.Logger
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		IsValid:     false,
		BucketNames: DefaultBucketNames,
		Logger:      log,
	}
}

// Connect establishes a connection to InfluxDB.
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
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Msg("InfluxDB unreachable, telemetry export disabled")
		return nil
	}
	m.IsValid = true

	if err := m.setupOrganizationAndBuckets(); err != nil {
		return err
	}
	m.CreateWriters()
	m.Logger.Info().Msg("InfluxDB client initialized")

	return nil
}

func (m *Manager) setupOrganizationAndBuckets() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure buckets exist with 90 day retention
	for _, bucket := range m.BucketNames {
		_, err = m.Client.BucketsAPI().FindBucketByName(ctx, bucket)
		if err != nil {
			m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

			rule := domain.RetentionRuleTypeExpire
			_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
				Type:         &rule,
				EverySeconds: 60 * 60 * 24 * 90, // 90 days
			})
			if err != nil {
				m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
				return err
			}
		}
	}

	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	orgName := viper.GetString("influx.org")
	for _, bucket := range m.BucketNames {
		m.Writers[bucket] = m.Client.WriteAPI(orgName, bucket)

		errorsCh := m.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)
	}

	m.Logger.Debug().Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB. Dropped silently when the client
// never validated; telemetry export is best effort.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	if !m.IsValid {
		return nil
	}
	if _, ok := m.Writers[bucket]; !ok {
		return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
	}
	m.Writers[bucket].WritePoint(point)
	return nil
}

// WritePlayerCount records a player-count sample.
func (m *Manager) WritePlayerCount(count int) error {
	point := influxdb2.NewPoint(
		"player_count",
		map[string]string{"source": "live_push"},
		map[string]any{"players": count},
		time.Now(),
	)
	return m.WritePoint(BucketPlayerCounts, point)
}

// WriteIngestTiming records how long one push took to process.
func (m *Manager) WriteIngestTiming(storeName string, received int, duration time.Duration) error {
	point := influxdb2.NewPoint(
		"ingest",
		map[string]string{"store": storeName},
		map[string]any{
			"received":    received,
			"duration_ms": float64(duration.Microseconds()) / 1000.0,
		},
		time.Now(),
	)
	return m.WritePoint(BucketIngest, point)
}

// Close flushes pending writes and shuts the client down.
func (m *Manager) Close() {
	if m.Client == nil {
		return
	}
	for _, w := range m.Writers {
		w.Flush()
	}
	m.Client.Close()
}
