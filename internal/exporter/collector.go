// Package exporter exposes account state as Prometheus metrics.
package exporter

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"ucams-cli/internal/logging"
	"ucams-cli/internal/token"
	"ucams-cli/pkg/models"
)

// Account is what the collector reads from one configured account.
type Account interface {
	Name() string
	ListCameras(ctx context.Context) (map[string]models.Camera, error)
	SharedDevices(ctx context.Context) ([]models.SharedDevice, error)
	ContractBalances(ctx context.Context) (map[string]float64, error)
}

// Source returns the accounts to scrape.
type Source func() []Account

var (
	upDesc = prometheus.NewDesc(
		"ucams_up", "Was the last scrape of the account successful.", []string{"account"}, nil,
	)
	scrapeDurationDesc = prometheus.NewDesc(
		"ucams_scrape_duration_seconds", "Time taken to scrape all accounts.", nil, nil,
	)
	cameraCountDesc = prometheus.NewDesc(
		"ucams_cameras_total", "Number of cameras visible to the account.", []string{"account"}, nil,
	)
	tokenExpiryDesc = prometheus.NewDesc(
		"ucams_camera_token_expiry_timestamp_seconds", "Expiry of the camera resource token.", []string{"account", "id", "title"}, nil,
	)
	sharedDevicesDesc = prometheus.NewDesc(
		"ucams_shared_devices_total", "Number of shared access devices.", []string{"account"}, nil,
	)
	balanceDesc = prometheus.NewDesc(
		"ucams_contract_balance", "Current contract balance.", []string{"account", "contract"}, nil,
	)
)

// Collector scrapes every account on each collection.
type Collector struct {
	Source  Source
	Timeout time.Duration

	mu  sync.Mutex
	log *zap.Logger
}

func NewCollector(src Source, timeout time.Duration, logger *zap.Logger) *Collector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Collector{
		Source:  src,
		Timeout: timeout,
		log:     logging.OrNop(logger).With(logging.Component("exporter")),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- upDesc
	ch <- scrapeDurationDesc
	ch <- cameraCountDesc
	ch <- tokenExpiryDesc
	ch <- sharedDevicesDesc
	ch <- balanceDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	for _, acc := range c.Source() {
		c.collectAccount(ctx, ch, acc)
	}

	ch <- prometheus.MustNewConstMetric(scrapeDurationDesc, prometheus.GaugeValue, time.Since(start).Seconds())
}

func (c *Collector) collectAccount(ctx context.Context, ch chan<- prometheus.Metric, acc Account) {
	name := acc.Name()
	log := c.log.With(logging.Account(name))
	success := 1.0

	// 1. Cameras
	if cams, err := acc.ListCameras(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(cameraCountDesc, prometheus.GaugeValue, float64(len(cams)), name)
		for id, cam := range cams {
			exp, ok := token.Decode(cam.Token).Expiry()
			if !ok {
				continue
			}
			ch <- prometheus.MustNewConstMetric(tokenExpiryDesc, prometheus.GaugeValue, float64(exp.Unix()), name, id, cam.Title)
		}
	} else {
		success = 0
		log.Warn("error scraping cameras", zap.Error(err))
	}

	// 2. Shared devices
	if devices, err := acc.SharedDevices(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(sharedDevicesDesc, prometheus.GaugeValue, float64(len(devices)), name)
	} else {
		success = 0
		log.Warn("error scraping shared devices", zap.Error(err))
	}

	// 3. Balances
	if balances, err := acc.ContractBalances(ctx); err == nil {
		for contract, v := range balances {
			ch <- prometheus.MustNewConstMetric(balanceDesc, prometheus.GaugeValue, v, name, contract)
		}
	} else {
		success = 0
		log.Warn("error scraping contracts", zap.Error(err))
	}

	ch <- prometheus.MustNewConstMetric(upDesc, prometheus.GaugeValue, success, name)
}
