package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/bnema/powertrack-cli/internal/adapters/jsoncodec"
	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/bnema/powertrack-cli/internal/ports"
	"github.com/bnema/powertrack-cli/internal/ports/mocks"
)

const rulesURL = "https://api.example.test/accounts/acme/publishers/twitter/streams/track/prod/rules.json"

func ruleTarget() RuleTarget {
	return RuleTarget{
		AccountName: "acme",
		URL:         rulesURL,
		Credentials: domain.Credentials{User: "ops@acme.test", Password: "secret"},
	}
}

func makeRules(n int) domain.RuleSet {
	rules := make(domain.RuleSet, 0, n)
	for i := range n {
		rules = append(rules, domain.Rule{Value: fmt.Sprintf("rule-%d", i)})
	}
	return rules
}

func method(name string) interface{} {
	return mock.MatchedBy(func(req ports.Request) bool { return req.Method == name })
}

func decodeBatch(t *testing.T, req ports.Request) domain.RuleSet {
	t.Helper()

	var payload rulesPayload
	require.NoError(t, jsoncodec.Unmarshal(req.Body, &payload))
	return payload.Rules
}

// recordBatches answers every request with status and records the batches sent.
func recordBatches(t *testing.T, transport *mocks.MockTransport, httpMethod string, statuses ...int) *[]domain.RuleSet {
	t.Helper()

	var batches []domain.RuleSet
	transport.EXPECT().Do(mockAnyContext(), method(httpMethod)).RunAndReturn(func(_ context.Context, req ports.Request) (ports.Response, error) {
		assert.Equal(t, rulesURL, req.URL)
		assert.Equal(t, "ops@acme.test", req.Credentials.User)
		batches = append(batches, decodeBatch(t, req))
		status := http.StatusCreated
		if len(statuses) >= len(batches) {
			status = statuses[len(batches)-1]
		}
		return ports.Response{StatusCode: status}, nil
	})
	return &batches
}

func TestReconcilerAddSplitsIntoFrontSlicedBatches(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	batches := recordBatches(t, transport, http.MethodPost)
	reconciler := NewReconciler(transport, jsoncodec.Codec{}, ruleTarget(), ReconcilerOptions{})

	rules := makeRules(2500)
	report, err := reconciler.Add(context.Background(), rules, 1000)
	require.NoError(t, err)

	require.Len(t, *batches, 3)
	assert.Equal(t, rules[:1000], (*batches)[0])
	assert.Equal(t, rules[1000:2000], (*batches)[1])
	assert.Equal(t, rules[2000:], (*batches)[2])
	assert.Equal(t, BatchReport{Batches: 3, Rules: 2500}, report)
}

func TestReconcilerBatchCounts(t *testing.T) {
	tests := []struct {
		rules       int
		maxBatch    int
		wantBatches int
	}{
		{rules: 0, maxBatch: 10, wantBatches: 0},
		{rules: 1, maxBatch: 10, wantBatches: 1},
		{rules: 10, maxBatch: 10, wantBatches: 1},
		{rules: 11, maxBatch: 10, wantBatches: 2},
		{rules: 5, maxBatch: 0, wantBatches: 3},
		{rules: 5, maxBatch: -1, wantBatches: 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d rules by %d", tt.rules, tt.maxBatch), func(t *testing.T) {
			transport := mocks.NewMockTransport(t)
			var batches *[]domain.RuleSet
			if tt.wantBatches > 0 {
				batches = recordBatches(t, transport, http.MethodDelete)
			}
			reconciler := NewReconciler(transport, jsoncodec.Codec{}, ruleTarget(), ReconcilerOptions{BatchSize: 2})

			report, err := reconciler.Remove(context.Background(), makeRules(tt.rules), tt.maxBatch)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBatches, report.Batches)
			if batches != nil {
				assert.Len(t, *batches, tt.wantBatches)
			}
		})
	}
}

func TestReconcilerAddAbortsOnFirstFailure(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	batches := recordBatches(t, transport, http.MethodPost, http.StatusCreated, http.StatusServiceUnavailable, http.StatusCreated)
	reconciler := NewReconciler(transport, jsoncodec.Codec{}, ruleTarget(), ReconcilerOptions{})

	report, err := reconciler.Add(context.Background(), makeRules(5), 2)

	var addErr *domain.RuleAddError
	require.True(t, errors.As(err, &addErr))
	assert.Equal(t, http.StatusServiceUnavailable, addErr.Code)
	assert.Len(t, *batches, 2)
	assert.Equal(t, BatchReport{Batches: 1, Rules: 2}, report)
}

func TestReconcilerAddStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		resp   ports.Response
		err    error
		assert func(t *testing.T, err error)
	}{
		{
			name: "payload too large",
			resp: ports.Response{StatusCode: http.StatusRequestEntityTooLarge},
			assert: func(t *testing.T, err error) {
				var target *domain.PayloadTooLargeError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name: "invalid rule",
			resp: ports.Response{StatusCode: http.StatusUnprocessableEntity, Body: []byte(`{"error":{"message":"bad syntax"}}`)},
			assert: func(t *testing.T, err error) {
				var target *domain.InvalidRuleError
				require.True(t, errors.As(err, &target))
				assert.Equal(t, `{"error":{"message":"bad syntax"}}`, target.Body)
				assert.Contains(t, err.Error(), "Response Code: 422")
			},
		},
		{
			name: "other status",
			resp: ports.Response{StatusCode: http.StatusForbidden},
			assert: func(t *testing.T, err error) {
				var target *domain.RuleAddError
				require.True(t, errors.As(err, &target))
				assert.Equal(t, http.StatusForbidden, target.Code)
				assert.EqualError(t, err, "new rules could not be added. Response Code: 403")
			},
		},
		{
			name: "transport failure",
			err:  &domain.ConnectionError{Op: http.MethodPost, URL: rulesURL, Err: errors.New("connection refused")},
			assert: func(t *testing.T, err error) {
				var target *domain.RuleAddError
				require.True(t, errors.As(err, &target))
				assert.Zero(t, target.Code)
				var connErr *domain.ConnectionError
				assert.True(t, errors.As(err, &connErr))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := mocks.NewMockTransport(t)
			transport.EXPECT().Do(mockAnyContext(), method(http.MethodPost)).Return(tt.resp, tt.err).Once()
			reconciler := NewReconciler(transport, jsoncodec.Codec{}, ruleTarget(), ReconcilerOptions{})

			_, err := reconciler.Add(context.Background(), makeRules(1), 0)
			tt.assert(t, err)
		})
	}
}

func TestReconcilerRemoveStatusMapping(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().Do(mockAnyContext(), method(http.MethodDelete)).Return(ports.Response{StatusCode: http.StatusInternalServerError}, nil).Once()
	reconciler := NewReconciler(transport, jsoncodec.Codec{}, ruleTarget(), ReconcilerOptions{})

	_, err := reconciler.Remove(context.Background(), makeRules(1), 0)

	var removeErr *domain.RuleRemoveError
	require.True(t, errors.As(err, &removeErr))
	assert.Equal(t, http.StatusInternalServerError, removeErr.Code)
	assert.EqualError(t, err, "rules could not be removed. Response Code: 500")
}

func TestReconcilerList(t *testing.T) {
	tests := []struct {
		name    string
		resp    ports.Response
		err     error
		want    domain.RuleSet
		wantErr int
	}{
		{
			name: "rules",
			resp: ports.Response{StatusCode: http.StatusOK, Body: []byte(`{"rules":[{"value":"cats","tag":"pets"},{"value":"dogs"}]}`)},
			want: domain.RuleSet{{Value: "cats", Tag: "pets"}, {Value: "dogs"}},
		},
		{
			name: "empty body",
			resp: ports.Response{StatusCode: http.StatusOK},
			want: domain.RuleSet{},
		},
		{
			name: "no rules key",
			resp: ports.Response{StatusCode: http.StatusOK, Body: []byte(`{}`)},
			want: domain.RuleSet{},
		},
		{
			name:    "unauthorized",
			resp:    ports.Response{StatusCode: http.StatusUnauthorized},
			wantErr: http.StatusUnauthorized,
		},
		{
			name:    "transport failure",
			err:     &domain.ConnectionError{Op: http.MethodGet, URL: rulesURL, Err: errors.New("no route to host")},
			wantErr: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := mocks.NewMockTransport(t)
			transport.EXPECT().Do(mockAnyContext(), method(http.MethodGet)).Return(tt.resp, tt.err).Once()
			reconciler := NewReconciler(transport, jsoncodec.Codec{}, ruleTarget(), ReconcilerOptions{})

			rules, err := reconciler.List(context.Background())
			if tt.wantErr == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.want, rules)
				return
			}

			var listErr *domain.RuleListError
			require.True(t, errors.As(err, &listErr))
			if tt.wantErr > 0 {
				assert.Equal(t, tt.wantErr, listErr.Code)
				return
			}
			assert.Zero(t, listErr.Code)
			var connErr *domain.ConnectionError
			assert.True(t, errors.As(err, &connErr))
		})
	}
}

func TestReconcilerUpdateAddsThenRemoves(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	var calls []string
	transport.EXPECT().Do(mockAnyContext(), method(http.MethodGet)).RunAndReturn(func(context.Context, ports.Request) (ports.Response, error) {
		calls = append(calls, "list")
		return ports.Response{StatusCode: http.StatusOK, Body: []byte(`{"rules":[{"value":"A"},{"value":"B"}]}`)}, nil
	}).Once()
	transport.EXPECT().Do(mockAnyContext(), method(http.MethodPost)).RunAndReturn(func(_ context.Context, req ports.Request) (ports.Response, error) {
		calls = append(calls, "add")
		assert.Equal(t, domain.RuleSet{{Value: "C", Tag: "new"}}, decodeBatch(t, req))
		return ports.Response{StatusCode: http.StatusCreated}, nil
	}).Once()
	transport.EXPECT().Do(mockAnyContext(), method(http.MethodDelete)).RunAndReturn(func(_ context.Context, req ports.Request) (ports.Response, error) {
		calls = append(calls, "remove")
		assert.Equal(t, domain.RuleSet{{Value: "A"}}, decodeBatch(t, req))
		return ports.Response{StatusCode: http.StatusOK}, nil
	}).Once()

	var events []domain.Event
	reconciler := NewReconciler(transport, jsoncodec.Codec{}, ruleTarget(), ReconcilerOptions{
		Listener: func(ev domain.Event) { events = append(events, ev) },
	})

	report, err := reconciler.Update(context.Background(), domain.RuleSet{{Value: "B"}, {Value: "C", Tag: "new"}}, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"list", "add", "remove"}, calls)
	assert.Equal(t, BatchReport{Batches: 1, Rules: 1}, report.Added)
	assert.Equal(t, BatchReport{Batches: 1, Rules: 1}, report.Removed)
	assert.Equal(t, domain.RuleSet{{Value: "B"}}, report.Plan.ToKeep)

	require.Len(t, events, 1)
	assert.Equal(t, domain.SuccessChannel, events[0].Channel)
	assert.Equal(t, report, events[0].Report)
}

func TestReconcilerReportsBatchProgress(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().Do(mockAnyContext(), method(http.MethodGet)).Return(ports.Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"rules":[{"value":"stale-1"},{"value":"stale-2"}]}`),
	}, nil).Once()
	recordBatches(t, transport, http.MethodPost)
	recordBatches(t, transport, http.MethodDelete)

	var progress []BatchProgress
	reconciler := NewReconciler(transport, jsoncodec.Codec{}, ruleTarget(), ReconcilerOptions{
		Progress: func(p BatchProgress) { progress = append(progress, p) },
	})

	_, err := reconciler.Update(context.Background(), makeRules(5), 2)
	require.NoError(t, err)

	assert.Equal(t, []BatchProgress{
		{Op: OpAdd, Batch: 1, Batches: 3, Rules: 2},
		{Op: OpAdd, Batch: 2, Batches: 3, Rules: 2},
		{Op: OpAdd, Batch: 3, Batches: 3, Rules: 1},
		{Op: OpRemove, Batch: 1, Batches: 1, Rules: 2},
	}, progress)
}

func TestReconcilerUpdateSkipsRemoveWhenAddFails(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().Do(mockAnyContext(), method(http.MethodGet)).
		Return(ports.Response{StatusCode: http.StatusOK, Body: []byte(`{"rules":[{"value":"A"}]}`)}, nil).Once()
	transport.EXPECT().Do(mockAnyContext(), method(http.MethodPost)).
		Return(ports.Response{StatusCode: http.StatusUnprocessableEntity, Body: []byte("bad rule")}, nil).Once()

	var channels []string
	reconciler := NewReconciler(transport, jsoncodec.Codec{}, ruleTarget(), ReconcilerOptions{
		Listener: func(ev domain.Event) { channels = append(channels, ev.Channel.String()) },
	})

	report, err := reconciler.Update(context.Background(), domain.RuleSet{{Value: "B"}}, 0)

	var invalid *domain.InvalidRuleError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "bad rule", invalid.Body)
	assert.Zero(t, report.Removed.Batches)
	assert.Equal(t, []string{"unprocessable_entity", "error"}, channels)
}

func TestReconcilerUpdateSkipsEmptyStages(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().Do(mockAnyContext(), method(http.MethodGet)).
		Return(ports.Response{StatusCode: http.StatusOK, Body: []byte(`{"rules":[{"value":"A","tag":"old"}]}`)}, nil).Once()
	reconciler := NewReconciler(transport, jsoncodec.Codec{}, ruleTarget(), ReconcilerOptions{})

	report, err := reconciler.Update(context.Background(), domain.RuleSet{{Value: "A", Tag: "renamed"}}, 0)
	require.NoError(t, err)
	assert.True(t, report.Plan.Empty())
	assert.Zero(t, report.Added.Batches)
	assert.Zero(t, report.Removed.Batches)
}

func TestReconcilerUpdateStopsWhenListFails(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().Do(mockAnyContext(), method(http.MethodGet)).
		Return(ports.Response{StatusCode: http.StatusServiceUnavailable}, nil).Once()
	reconciler := NewReconciler(transport, jsoncodec.Codec{}, ruleTarget(), ReconcilerOptions{})

	_, err := reconciler.Update(context.Background(), domain.RuleSet{{Value: "A"}}, 0)

	var listErr *domain.RuleListError
	require.True(t, errors.As(err, &listErr))
	assert.Equal(t, http.StatusServiceUnavailable, listErr.Code)
}

func TestReconcilerValidatesIdentityBeforeAnyRequest(t *testing.T) {
	transport := mocks.NewMockTransport(t)

	target := ruleTarget()
	target.AccountName = ""
	reconciler := NewReconciler(transport, jsoncodec.Codec{}, target, ReconcilerOptions{})

	_, err := reconciler.List(context.Background())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	_, err = reconciler.Add(context.Background(), makeRules(1), 0)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	_, err = reconciler.Update(context.Background(), makeRules(1), 0)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	target = ruleTarget()
	target.Credentials = domain.Credentials{}
	reconciler = NewReconciler(transport, jsoncodec.Codec{}, target, ReconcilerOptions{})
	_, err = reconciler.Remove(context.Background(), domain.RuleSet{}, 0)
	assert.ErrorContains(t, err, "missing account credentials")
}

func TestReconcilerListenerReceivesRequestTooLarge(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	transport.EXPECT().Do(mockAnyContext(), method(http.MethodPost)).
		Return(ports.Response{StatusCode: http.StatusRequestEntityTooLarge}, nil).Once()

	var events []domain.Event
	reconciler := NewReconciler(transport, jsoncodec.Codec{}, ruleTarget(), ReconcilerOptions{
		Listener: func(ev domain.Event) { events = append(events, ev) },
	})

	_, err := reconciler.Add(context.Background(), makeRules(3), 0)
	require.Error(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "request_too_large", events[0].Channel.String())
	assert.Equal(t, domain.ErrorChannel, events[1].Channel)
	assert.Same(t, err, events[1].Err)
}

func TestReconcilerLimiterHonoursContext(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	reconciler := NewReconciler(transport, jsoncodec.Codec{}, ruleTarget(), ReconcilerOptions{
		Limiter: rate.NewLimiter(rate.Limit(1), 1),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := reconciler.Add(ctx, makeRules(2), 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Batches)
}
