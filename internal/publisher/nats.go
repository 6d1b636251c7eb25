package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"taxi-dashboard/internal/dashboard"
	"taxi-dashboard/internal/engine"
	"taxi-dashboard/internal/taxi"
)

// RequestTimeout bounds the work done for one NATS query.
const RequestTimeout = 30 * time.Second

type NATSPublisher struct {
	nc          *nats.Conn
	subject     string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSRequestInc()
	NATSRequestErrInc()
	NATSPublishedInc()
	NATSSetConnected(connected bool)
}

// Querier is the part of the dashboard service the responder needs.
type Querier interface {
	Query(ctx context.Context, f engine.Filter) (*engine.Result, error)
	Options() (dashboard.Options, error)
}

// NewNATSPublisher connects to url. Queries are served on <subject>.query
// and dataset events go to <subject>.dataset.
func NewNATSPublisher(url, subject string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("taxi-dashboard"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, subject: subjectToken(subject), logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

func (p *NATSPublisher) QuerySubject() string   { return p.subject + ".query" }
func (p *NATSPublisher) DatasetSubject() string { return p.subject + ".dataset" }

// Serve answers query requests in queue group queue until ctx is done.
func (p *NATSPublisher) Serve(ctx context.Context, q Querier, queue string) error {
	sub, err := p.nc.QueueSubscribe(p.QuerySubject(), queue, func(msg *nats.Msg) {
		if p.metrics != nil {
			p.metrics.NATSRequestInc()
		}
		rctx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()

		resp := handleQuery(rctx, q, msg.Data)
		if p.logSubjects {
			log.Printf("nats request subject=%s id=%s status=%s", msg.Subject, resp.RequestID, resp.Status)
		}
		b, err := json.Marshal(resp)
		if err == nil {
			err = msg.Respond(b)
		}
		if err != nil || resp.Status == dashboard.StatusError {
			if p.metrics != nil {
				p.metrics.NATSRequestErrInc()
			}
			if err != nil {
				log.Printf("nats respond error: %v", err)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", p.QuerySubject(), err)
	}
	log.Printf("nats serving queries on %s (queue %s)", p.QuerySubject(), queue)
	<-ctx.Done()
	return sub.Unsubscribe()
}

// QueryRequest is the body of a NATS query. A missing filter selects the
// whole dataset; Bins, when set, merges the distance histogram.
type QueryRequest struct {
	RequestID string         `json:"request_id,omitempty"`
	Filter    *engine.Filter `json:"filter,omitempty"`
	Bins      int            `json:"bins,omitempty"`
}

func handleQuery(ctx context.Context, q Querier, data []byte) dashboard.Response {
	var req QueryRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			resp := dashboard.NewResponse(nil, fmt.Errorf("%w: decode request: %v", taxi.ErrInvalidFilter, err))
			resp.RequestID = uuid.NewString()
			return resp
		}
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	opts, err := q.Options()
	if err != nil {
		resp := dashboard.NewResponse(nil, err)
		resp.RequestID = req.RequestID
		return resp
	}
	f := opts.DefaultFilter()
	if req.Filter != nil {
		f = *req.Filter
	}

	res, err := q.Query(ctx, f)
	if err == nil {
		res, err = dashboard.WithBins(res, req.Bins)
	}
	resp := dashboard.NewResponse(res, err)
	resp.RequestID = req.RequestID
	resp.Dataset = opts.Dataset
	return resp
}

// DatasetEvent announces a newly loaded dataset.
type DatasetEvent struct {
	Dataset  string         `json:"dataset"`
	Read     int            `json:"rows_read"`
	Kept     int            `json:"rows_kept"`
	Dropped  map[string]int `json:"rows_dropped"`
	MinDate  taxi.Date      `json:"min_date"`
	MaxDate  taxi.Date      `json:"max_date"`
	LoadedAt time.Time      `json:"loaded_at"`
}

func NewDatasetEvent(ds *dashboard.Dataset) DatasetEvent {
	ev := DatasetEvent{
		Dataset:  ds.Identity,
		Read:     ds.Stats.Read,
		Kept:     ds.Stats.Kept,
		Dropped:  make(map[string]int, len(ds.Stats.Dropped)),
		MinDate:  ds.Options.MinDate,
		MaxDate:  ds.Options.MaxDate,
		LoadedAt: ds.LoadedAt,
	}
	for reason, n := range ds.Stats.Dropped {
		ev.Dropped[string(reason)] = n
	}
	return ev
}

func (p *NATSPublisher) PublishDataset(ds *dashboard.Dataset) error {
	b, err := json.Marshal(NewDatasetEvent(ds))
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", p.DatasetSubject())
	}
	err = p.nc.Publish(p.DatasetSubject(), b)
	if p.metrics != nil && err == nil {
		p.metrics.NATSPublishedInc()
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = strings.Trim(repl.Replace(s), ".")
	if s == "" {
		s = "taxi"
	}
	return s
}
