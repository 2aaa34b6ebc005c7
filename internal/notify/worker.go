package notify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"bloodlink/pkg/compat"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
	"bloodlink/pkg/store"
)

// DefaultAlertRadiusKm bounds how far from the request donors are
// alerted.
const DefaultAlertRadiusKm = 50

// Notifier delivers one alert to one donor. Implementations decide the
// channel (log, SMS, push).
type Notifier interface {
	NotifyDonor(ctx context.Context, donor domain.Donor, request domain.BloodRequest) error
}

// LogNotifier writes alerts to the structured log. It stands in until a
// real delivery channel is wired.
type LogNotifier struct{}

func (LogNotifier) NotifyDonor(_ context.Context, donor domain.Donor, request domain.BloodRequest) error {
	slog.Info("donor alert",
		"donor_id", donor.ID,
		"donor_group", donor.BloodGroup,
		"request_id", request.ID,
		"request_group", request.BloodGroup,
		"urgency", request.Urgency,
	)
	return nil
}

// Worker consumes queued request IDs and alerts compatible donors near
// the request.
type Worker struct {
	store       store.Store
	queue       *RedisAlertQueue
	notifier    Notifier
	radiusKm    float64
	concurrency int
	fanout      int
}

type WorkerConfig struct {
	Store    store.Store
	Queue    *RedisAlertQueue
	Notifier Notifier
	// RadiusKm limits alerts to donors near the request; requests
	// without coordinates alert donors regardless of distance.
	RadiusKm float64
	// Concurrency is the number of queue consumers.
	Concurrency int
	// Fanout bounds concurrent notifier calls per request.
	Fanout int
}

func NewWorker(cfg WorkerConfig) *Worker {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = LogNotifier{}
	}
	radius := cfg.RadiusKm
	if radius <= 0 {
		radius = DefaultAlertRadiusKm
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	fanout := cfg.Fanout
	if fanout <= 0 {
		fanout = 8
	}
	return &Worker{
		store:       cfg.Store,
		queue:       cfg.Queue,
		notifier:    notifier,
		radiusKm:    radius,
		concurrency: concurrency,
		fanout:      fanout,
	}
}

// Start launches the queue consumers. It returns immediately; consumers
// stop when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.queue.Start(ctx, w.concurrency, w.Handle)
}

// Handle alerts eligible donors for one blood request. Requests that no
// longer exist or are no longer active are acked without fan-out.
func (w *Worker) Handle(ctx context.Context, requestID string) error {
	request, ok, err := w.store.GetRequest(requestID)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	if !ok || request.Status != domain.RequestActive {
		return nil
	}

	donors, err := w.eligibleDonors(request)
	if err != nil {
		return err
	}
	if len(donors) == 0 {
		slog.Info("no donors to alert", "request_id", request.ID, "blood_group", request.BloodGroup)
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.fanout)
	for _, donor := range donors {
		donor := donor
		g.Go(func() error {
			return w.notifier.NotifyDonor(ctx, donor, request)
		})
	}
	return g.Wait()
}

// eligibleDonors collects available donors whose blood group can serve
// the request at its urgency tier, deduplicated and radius-filtered
// when the request carries coordinates.
func (w *Worker) eligibleDonors(request domain.BloodRequest) ([]domain.Donor, error) {
	groups := compat.EligibleDonorGroups(request.BloodGroup, request.Urgency.Tier())

	seen := make(map[string]bool)
	var donors []domain.Donor
	for _, group := range groups {
		matched, err := w.store.AvailableDonors(group)
		if err != nil {
			return nil, fmt.Errorf("list donors for %s: %w", group, err)
		}
		for _, d := range matched {
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			if request.Coordinates != nil {
				if d.Location == nil {
					continue
				}
				distance := geo.Distance(
					request.Coordinates.Latitude, request.Coordinates.Longitude,
					d.Location.Latitude, d.Location.Longitude,
				)
				if distance > w.radiusKm {
					continue
				}
			}
			donors = append(donors, d)
		}
	}
	return donors, nil
}
