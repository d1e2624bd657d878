package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/observability"
	"github.com/mohammed-shakir/sitrep-cache/internal/invalidation"
	"github.com/mohammed-shakir/sitrep-cache/internal/region"
)

// Invalidator clears one category, or everything for the empty category.
type Invalidator interface {
	Invalidate(ctx context.Context, category model.Category) error
}

type Mapper interface {
	CellsForBBox(bbox model.BBox, res int) (model.Cells, error)
	CellForPoint(lat, lon float64, res int) (string, error)
}

type Regions interface {
	All() []region.Region
	Get(id string) (region.Region, bool)
}

// regionBound are the categories whose records are tied to a location.
var regionBound = []model.Category{model.CategoryHotspot, model.CategoryReport}

type Runner struct {
	log      *slog.Logger
	cfg      InvalidationConfig
	inv      Invalidator
	mapper   Mapper
	regions  Regions
	res      int
	ms       *metricSet
	versions *scopeVersions
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

type Options struct {
	Logger   *slog.Logger
	Register prometheus.Registerer
	// Res is the H3 resolution used to match region centroids against a bbox.
	Res int
}

func New(cfg InvalidationConfig, inv Invalidator, m Mapper, regions Regions, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &Runner{
		log:      opts.Logger.With("component", "invalidation"),
		cfg:      cfg,
		inv:      inv,
		mapper:   m,
		regions:  regions,
		res:      opts.Res,
		ms:       newMetricSet(opts.Register),
		versions: newScopeVersions(defaultTrackedScopes),
		assign:   map[int32]struct{}{},
	}
	if r.res <= 0 {
		r.res = 6
	}
	return r
}

func (r *Runner) Enabled() bool { return r.cfg.Enabled && r.cfg.Driver == DriverKafka }

func (r *Runner) Start(ctx context.Context) error {
	if !r.Enabled() {
		r.log.Info("invalidation runner disabled", "driver", r.cfg.Driver, "enabled", r.cfg.Enabled)
		return nil
	}
	if r.inv == nil || r.mapper == nil || r.regions == nil {
		return errors.New("kafka runner: invalidator, mapper and regions are required")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = r.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = r.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = r.cfg.RebalanceTimeout
	if r.cfg.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(r.cfg.Brokers, r.cfg.GroupID, cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("consumer group: %w", err)
	}

	h := &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			claims := sess.Claims()
			r.assignMu.Lock()
			r.assigned.Store(true)
			r.assign = map[int32]struct{}{}
			for _, parts := range claims {
				for _, p := range parts {
					r.assign[p] = struct{}{}
				}
			}
			r.assignMu.Unlock()
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(false)
			r.assign = map[int32]struct{}{}
			r.assignMu.Unlock()
		},
		process: r.handleMessage,
		log:     r.log,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				r.log.Error("kafka consumer group close", "err", err)
			}
		}()

		for {
			if err := group.Consume(ctx, []string{r.cfg.Topic}, h); err != nil {
				r.log.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			r.log.Error("kafka group error", "err", err)
		}
	}()

	r.log.Info("kafka invalidation runner started",
		"topic", r.cfg.Topic, "group", r.cfg.GroupID, "brokers", r.cfg.Brokers)
	return nil
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("kafka invalidation runner stopped")
}

// Readiness reports the assigned partitions. A disabled runner is always ready.
func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.Enabled() {
		return true, nil
	}
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

func (r *Runner) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	if !msg.Timestamp.IsZero() {
		observability.SetInvalidationLagSeconds(time.Since(msg.Timestamp).Seconds())
	}

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		r.ms.event(resultRejected)
		return fmt.Errorf("decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		r.ms.event(resultRejected)
		return fmt.Errorf("validate: %w", err)
	}
	scope := ev.Scope()
	if !r.versions.advance(scope, ev.Version) {
		r.ms.event(resultDuplicate)
		return nil
	}
	err := r.apply(ctx, ev)
	r.ms.applied(scope, time.Since(start))
	if err != nil {
		r.ms.event(resultFailed)
		return err
	}
	r.ms.event(resultApplied)
	return nil
}

func (r *Runner) apply(ctx context.Context, ev invalidation.Event) error {
	switch {
	case ev.Category != "":
		c, err := model.ParseCategory(ev.Category)
		if err != nil {
			return err
		}
		return r.invalidate(ctx, c)

	case ev.RegionID != "":
		if _, ok := r.regions.Get(strings.ToLower(strings.TrimSpace(ev.RegionID))); !ok {
			r.ms.action("skip_unknown_region")
			return fmt.Errorf("unknown region %q", ev.RegionID)
		}
		return r.invalidate(ctx, regionBound...)

	case ev.BBox != nil:
		hit, err := r.bboxCoversRegion(ev.BBox.Model())
		if err != nil {
			return err
		}
		if !hit {
			r.ms.action("skip_outside")
			return nil
		}
		return r.invalidate(ctx, model.CategoryHotspot)
	}
	return r.invalidate(ctx, "")
}

// bboxCoversRegion reports whether any region centroid cell lies in the
// cells covering bb.
func (r *Runner) bboxCoversRegion(bb model.BBox) (bool, error) {
	cells, err := r.mapper.CellsForBBox(bb, r.res)
	if err != nil {
		return false, fmt.Errorf("CellsForBBox: %w", err)
	}
	set := make(map[string]struct{}, len(cells))
	for _, c := range cells {
		set[c] = struct{}{}
	}
	for _, reg := range r.regions.All() {
		c, err := r.mapper.CellForPoint(reg.Lat, reg.Lon, r.res)
		if err != nil {
			r.log.Warn("region centroid has no cell", "region", reg.ID, "err", err)
			continue
		}
		if _, ok := set[c]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (r *Runner) invalidate(ctx context.Context, cats ...model.Category) error {
	var errs []error
	for _, c := range cats {
		if err := r.inv.Invalidate(ctx, c); err != nil {
			errs = append(errs, err)
			continue
		}
		r.ms.action("clear_" + categoryLabel(c))
		observability.IncInvalidation(string(c), "kafka")
	}
	return errors.Join(errs...)
}

func categoryLabel(c model.Category) string {
	if c == "" {
		return "all"
	}
	return string(c)
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
	log     *slog.Logger
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

// ConsumeClaim marks failed messages too so one bad event cannot stall a
// partition.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if err := h.process(ctx, msg); err != nil {
			h.log.Warn("invalidation event dropped",
				"partition", msg.Partition, "offset", msg.Offset, "err", err)
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
