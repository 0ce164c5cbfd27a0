package heritage

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Request is one conversion in a batch.
type Request struct {
	Category string
	From     string
	To       string
	Input    string
}

// ConvertBatch converts every request on a bounded worker pool. Outcomes are
// in request order and share one language and table snapshot. A cancelled
// context stops submitting; requests never started are returned with the
// context error.
func (s *Service) ConvertBatch(ctx context.Context, requests []Request) ([]Outcome, error) {
	outcomes := make([]Outcome, len(requests))
	if len(requests) == 0 {
		return outcomes, nil
	}

	pool, err := ants.NewPool(s.configuration.GetBatchConcurrency(),
		ants.WithLogger(s.Log(ctx)),
		ants.WithPanicHandler(func(p any) {
			s.Log(ctx).WithField("panic", p).Error("batch conversion panicked")
		}),
	)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	language := s.store.Current()
	data := s.Data()

	var wg sync.WaitGroup
	for i, req := range requests {
		if ctxErr := ctx.Err(); ctxErr != nil {
			fillSkipped(outcomes[i:], ctxErr)
			err = ctxErr
			break
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = s.convertIn(language, data, req.Category, req.From, req.To, req.Input)
		})
		if submitErr != nil {
			wg.Done()
			fillSkipped(outcomes[i:], submitErr)
			err = submitErr
			break
		}
	}
	wg.Wait()

	s.Log(ctx).WithField("requests", len(requests)).Debug("batch conversion finished")
	return outcomes, err
}

func fillSkipped(outcomes []Outcome, err error) {
	for i := range outcomes {
		outcomes[i] = Outcome{Err: err, Text: err.Error()}
	}
}
