// Command sitrep-invalidate publishes one cache invalidation event to the
// invalidation topic.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/config"
	"github.com/mohammed-shakir/sitrep-cache/internal/invalidation"
	"github.com/mohammed-shakir/sitrep-cache/pkg/invalidation/kafka"
)

func main() {
	cfg := config.Load()
	category := flag.String("category", "", "hotspot|report|satellite")
	regionID := flag.String("region", "", "region id")
	bbox := flag.String("bbox", "", "minLon,minLat,maxLon,maxLat")
	version := flag.Uint64("version", uint64(time.Now().UnixNano()), "event version, must increase per scope")
	topic := flag.String("topic", cfg.Invalidation.Topic, "kafka topic")
	brokers := flag.String("brokers", cfg.Invalidation.Brokers, "comma separated brokers")
	flag.Parse()

	ev := invalidation.Event{
		Version:  *version,
		Op:       invalidation.OpInvalidate,
		Category: strings.TrimSpace(*category),
		RegionID: strings.TrimSpace(*regionID),
		TS:       time.Now().UTC(),
		Source:   "cli",
	}
	if *bbox != "" {
		bb, err := parseBBox(*bbox)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bbox:", err)
			os.Exit(2)
		}
		ev.BBox = bb
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_5_0_0
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	prod, err := sarama.NewSyncProducer(kafka.FromConfig(config.InvalidationCfg{Brokers: *brokers}).Brokers, sc)
	if err != nil {
		fmt.Fprintln(os.Stderr, "producer:", err)
		os.Exit(1)
	}
	defer func() { _ = prod.Close() }()

	part, off, err := kafka.Publish(prod, *topic, ev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "publish:", err)
		os.Exit(1)
	}
	fmt.Printf("published scope=%s version=%d partition=%d offset=%d\n", ev.Scope(), ev.Version, part, off)
}

func parseBBox(s string) (*invalidation.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected 4 comma-separated values")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i+1, err)
		}
		v[i] = f
	}
	return &invalidation.BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3], SRID: "EPSG:4326"}, nil
}
