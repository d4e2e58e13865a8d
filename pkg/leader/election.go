package leader

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"support-assistant/pkg/constants"
	"support-assistant/pkg/metrics"
)

// Elector reports whether this replica should run singleton background work
type Elector interface {
	IsLeader() bool
}

// Static is used when there is no Redis: a single replica is always the leader
type Static struct{}

func (Static) IsLeader() bool { return true }

const renewScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("EXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`

const resignScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// Election holds a Redis lease (SET NX with TTL) that the leader keeps renewing
type Election struct {
	rdb     *redis.Client
	key     string
	podID   string
	ttl     time.Duration
	period  time.Duration
	logger  *logrus.Logger
	metrics *metrics.Metrics

	isLeader atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func NewElection(rdb *redis.Client, podID string, ttl time.Duration, logger *logrus.Logger, m *metrics.Metrics) *Election {
	return &Election{
		rdb:     rdb,
		key:     constants.LeaderElectionKey,
		podID:   podID,
		ttl:     ttl,
		period:  constants.LeaderElectionPeriod,
		logger:  logger,
		metrics: m,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start campaigns immediately and then every election period until Stop or ctx ends
func (e *Election) Start(ctx context.Context) {
	e.logger.WithField("pod_id", e.podID).Info("Starting leader election process")
	e.tryBecomeLeader(ctx)
	go e.loop(ctx)
}

// Stop ends the campaign and releases the lease if held
func (e *Election) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		<-e.doneCh
		if e.isLeader.Load() {
			e.resign(context.Background())
		}
	})
}

func (e *Election) IsLeader() bool {
	return e.isLeader.Load()
}

func (e *Election) loop(ctx context.Context) {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.tryBecomeLeader(ctx)
		}
	}
}

func (e *Election) tryBecomeLeader(ctx context.Context) {
	start := time.Now()
	defer func() {
		e.metrics.LeaderElectionDuration.Observe(time.Since(start).Seconds())
	}()

	acquired, err := e.rdb.SetNX(ctx, e.key, e.podID, e.ttl).Result()
	if err != nil {
		e.logger.WithError(err).Error("Failed to attempt leader election")
		e.setLeader(false)
		return
	}
	if acquired {
		e.setLeader(true)
		return
	}

	// The lease exists; keep it alive if it is ours
	e.setLeader(e.renew(ctx))
}

func (e *Election) renew(ctx context.Context) bool {
	result, err := e.rdb.Eval(ctx, renewScript, []string{e.key}, e.podID, int64(e.ttl.Seconds())).Int64()
	if err != nil {
		e.logger.WithError(err).Error("Failed to renew leadership")
		return false
	}
	return result == 1
}

func (e *Election) resign(ctx context.Context) {
	if err := e.rdb.Eval(ctx, resignScript, []string{e.key}, e.podID).Err(); err != nil {
		e.logger.WithError(err).Error("Failed to resign leadership")
	} else {
		e.logger.Info("Resigned leadership")
	}
	e.isLeader.Store(false)
}

func (e *Election) setLeader(leader bool) {
	if e.isLeader.Swap(leader) == leader {
		return
	}
	if leader {
		e.logger.WithField("pod_id", e.podID).Info("Became leader")
		e.metrics.LeaderChanges.Inc()
	} else {
		e.logger.WithField("pod_id", e.podID).Info("Lost leadership")
	}
}
