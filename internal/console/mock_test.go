package console

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/schoolhealth/nurse-console/pkg/pagination"
)

// -- Test record --

const (
	statusPending  Status = "Pending"
	statusApproved Status = "Approved"
	statusRejected Status = "Rejected"
)

type testRecord struct {
	ID     uuid.UUID
	Name   string
	Status Status
	Note   string
}

func (r testRecord) RecordID() uuid.UUID  { return r.ID }
func (r testRecord) RecordStatus() Status { return r.Status }

func (r testRecord) WithTransition(tr Transition, justification string) testRecord {
	r.Status = tr.To
	r.Note = justification
	return r
}

func testMachine() *Machine {
	return NewMachine("item",
		Transition{From: statusPending, Action: ActionApprove, To: statusApproved, Justification: JustificationNotes},
		Transition{From: statusPending, Action: ActionReject, To: statusRejected, Justification: JustificationReason},
	)
}

func pendingRecords(n int) []testRecord {
	out := make([]testRecord, n)
	for i := range out {
		out[i] = testRecord{ID: uuid.New(), Name: fmt.Sprintf("item-%02d", i), Status: statusPending}
	}
	return out
}

// -- Mock gateway --

type fakeGateway struct {
	mu              sync.Mutex
	records         []testRecord
	listCalls       []ListParams
	transitionCalls int
	deleteCalls     int
	listErr         error
	listFailMessage string
	transitionErr   error
	transitionFail  string
	lastPayload     TransitionPayload
}

func newFakeGateway(records ...testRecord) *fakeGateway {
	return &fakeGateway{records: records}
}

func (g *fakeGateway) List(_ context.Context, p ListParams) (Envelope[[]testRecord], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls = append(g.listCalls, p)
	if g.listErr != nil {
		return Envelope[[]testRecord]{}, g.listErr
	}
	if g.listFailMessage != "" {
		return Envelope[[]testRecord]{Success: false, Message: g.listFailMessage}, nil
	}

	var matched []testRecord
	for _, r := range g.records {
		if s := p.Filters[FilterStatus]; s != "" && string(r.Status) != s {
			continue
		}
		if p.SearchTerm != "" && !strings.Contains(r.Name, p.SearchTerm) {
			continue
		}
		matched = append(matched, r)
	}
	pg := pagination.Params{PageIndex: p.PageIndex, PageSize: p.PageSize}
	start, end := pg.Window(len(matched))
	page := make([]testRecord, end-start)
	copy(page, matched[start:end])
	return Envelope[[]testRecord]{
		Success:    true,
		Data:       page,
		TotalCount: len(matched),
		TotalPages: pagination.TotalPages(len(matched), p.PageSize),
	}, nil
}

func (g *fakeGateway) Get(_ context.Context, id uuid.UUID) (Envelope[testRecord], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.records {
		if r.ID == id {
			return Envelope[testRecord]{Success: true, Data: r}, nil
		}
	}
	return Envelope[testRecord]{Success: false, Message: "not found"}, nil
}

func (g *fakeGateway) Create(_ context.Context, r testRecord) (Envelope[testRecord], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r.ID = uuid.New()
	g.records = append(g.records, r)
	return Envelope[testRecord]{Success: true, Data: r}, nil
}

func (g *fakeGateway) Update(_ context.Context, id uuid.UUID, r testRecord) (Envelope[testRecord], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.records {
		if g.records[i].ID == id {
			r.ID = id
			g.records[i] = r
			return Envelope[testRecord]{Success: true, Data: r}, nil
		}
	}
	return Envelope[testRecord]{Success: false, Message: "not found"}, nil
}

func (g *fakeGateway) Transition(_ context.Context, id uuid.UUID, action Action, payload TransitionPayload) (Envelope[Empty], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transitionCalls++
	g.lastPayload = payload
	if g.transitionErr != nil {
		return Envelope[Empty]{}, g.transitionErr
	}
	if g.transitionFail != "" {
		return Envelope[Empty]{Success: false, Message: g.transitionFail}, nil
	}
	for i := range g.records {
		if g.records[i].ID != id {
			continue
		}
		tr, err := testMachine().Check(g.records[i].Status, action)
		if err != nil {
			return Envelope[Empty]{Success: false, Message: err.Error()}, nil
		}
		g.records[i] = g.records[i].WithTransition(tr, payload.Text())
		return Envelope[Empty]{Success: true}, nil
	}
	return Envelope[Empty]{Success: false, Message: "not found"}, nil
}

func (g *fakeGateway) Delete(_ context.Context, id uuid.UUID) (Envelope[Empty], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleteCalls++
	for i := range g.records {
		if g.records[i].ID == id {
			g.records = append(g.records[:i], g.records[i+1:]...)
			return Envelope[Empty]{Success: true}, nil
		}
	}
	return Envelope[Empty]{Success: false, Message: "not found"}, nil
}

func (g *fakeGateway) listCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.listCalls)
}

func (g *fakeGateway) lastList() ListParams {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listCalls[len(g.listCalls)-1]
}

func (g *fakeGateway) transitions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.transitionCalls
}

// -- Recording alerter --

type alertRecord struct {
	Kind    AlertKind
	Title   string
	Message string
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []alertRecord
}

func (a *recordingAlerter) ShowAlert(kind AlertKind, title, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alertRecord{Kind: kind, Title: title, Message: message})
}

func (a *recordingAlerter) last() (alertRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.alerts) == 0 {
		return alertRecord{}, false
	}
	return a.alerts[len(a.alerts)-1], true
}
