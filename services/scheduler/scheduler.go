// Package scheduler runs the periodic background jobs of the worker.
// Last run times live in a bolt file whose lock allows a single running scheduler.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

var (
	bucketName  = []byte("last_runs")
	openTimeout = time.Second

	ErrLocked = errors.New("scheduler state is locked by another process")
)

type (
	Job struct {
		Name     string
		Interval time.Duration
		Run      func(ctx context.Context) error
	}

	Scheduler struct {
		db     *bolt.DB
		logger core.Logger
		jobs   []Job
	}
)

// Open opens (or creates) the state file. It fails with ErrLocked when another scheduler holds it.
func Open(path string, logger core.Logger) (*Scheduler, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err == bolt.ErrTimeout {
		return nil, errors.Wrap(ErrLocked, path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating state bucket")
	}
	return &Scheduler{db: db, logger: logger}, nil
}

// Close releases the file lock.
func (s *Scheduler) Close() error {
	return s.db.Close()
}

func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// LastRun is the zero time for a job that never ran.
func (s *Scheduler) LastRun(name string) (time.Time, error) {
	var last time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(name))
		if v == nil {
			return nil
		}
		return last.UnmarshalBinary(v)
	})
	return last, errors.Wrapf(err, "reading last run of %s", name)
}

func (s *Scheduler) setLastRun(name string, at time.Time) error {
	v, err := at.UTC().MarshalBinary()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(name), v)
	})
}

// delay is how long the job still has to wait after its last run.
func delay(interval time.Duration, last, now time.Time) time.Duration {
	if last.IsZero() {
		return 0
	}
	d := interval - now.Sub(last)
	if d < 0 {
		return 0
	}
	if d > interval {
		return interval // last run in the future: clock moved back
	}
	return d
}

// RunOnce runs job now and records the run. The job error is returned after the run is recorded.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) error {
	runErr := job.Run(ctx)
	if err := s.setLastRun(job.Name, core.NowFunc()); err != nil {
		return errors.Wrapf(err, "recording run of %s", job.Name)
	}
	return runErr
}

// Start runs each job every Interval until ctx is done. It blocks until every job loop returned.
// Job errors are logged and the job is retried at its next tick.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	last, err := s.LastRun(job.Name)
	if err != nil {
		s.logger.Error(err.Error(), err)
	}

	timer := time.NewTimer(delay(job.Interval, last, core.NowFunc()))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		started := time.Now()
		if err := s.RunOnce(ctx, job); err != nil && ctx.Err() == nil {
			s.logger.Error(fmt.Sprintf("job %s: %v", job.Name, err), err)
		} else {
			s.logger.Debug(fmt.Sprintf("job %s done in %s", job.Name, time.Since(started)))
		}
		timer.Reset(job.Interval)
	}
}
