package lifecycle_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-myimpact/pkg/lifecycle"
	"github.com/goliatone/go-myimpact/pkg/model"
	"github.com/goliatone/go-myimpact/pkg/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type validatorFunc func() (model.GenerationRequest, error)

func (fn validatorFunc) Validate() (model.GenerationRequest, error) { return fn() }

func validRequest(level string) lifecycle.Validator {
	return validatorFunc(func() (model.GenerationRequest, error) {
		return model.GenerationRequest{
			Scale:           "team",
			Level:           level,
			GrowthIntensity: "moderate",
			Organization:    "none",
			GoalStyle:       "concise",
		}, nil
	})
}

type senderFunc func(ctx context.Context, req transport.Request) (json.RawMessage, error)

func (fn senderFunc) Send(ctx context.Context, req transport.Request) (json.RawMessage, error) {
	return fn(ctx, req)
}

func respond(body string) lifecycle.Sender {
	return senderFunc(func(context.Context, transport.Request) (json.RawMessage, error) {
		return json.RawMessage(body), nil
	})
}

func TestMachineSubmit_Success(t *testing.T) {
	t.Parallel()

	var (
		gotReq transport.Request
		phases []lifecycle.Phase
	)
	sender := senderFunc(func(_ context.Context, req transport.Request) (json.RawMessage, error) {
		gotReq = req
		return json.RawMessage(`{"framework":"Set a quarterly team goal.","user_context":"Focus on delivery."}`), nil
	})
	machine := lifecycle.New(sender, lifecycle.WithListener(func(s lifecycle.State) {
		phases = append(phases, s.Phase)
	}))

	state, err := machine.Submit(context.Background(), validRequest("quarterly"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if state.Phase != lifecycle.PhaseSuccess || state.Result == nil {
		t.Fatalf("unexpected state: %+v", state)
	}
	if state.Result.FrameworkText != "Set a quarterly team goal." || state.Result.ContextText != "Focus on delivery." {
		t.Fatalf("unexpected result: %+v", state.Result)
	}
	if gotReq.Path != lifecycle.GeneratePath || gotReq.Method != "POST" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}

	want := []lifecycle.Phase{lifecycle.PhaseValidating, lifecycle.PhaseLoading, lifecycle.PhaseSuccess}
	if diff := cmp.Diff(want, phases); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestMachineSubmit_ValidationFailureReturnsToIdle(t *testing.T) {
	t.Parallel()

	called := false
	sender := senderFunc(func(context.Context, transport.Request) (json.RawMessage, error) {
		called = true
		return nil, nil
	})
	machine := lifecycle.New(sender)

	invalid := errors.New("missing scale")
	state, err := machine.Submit(context.Background(), validatorFunc(func() (model.GenerationRequest, error) {
		return model.GenerationRequest{}, invalid
	}))
	if !errors.Is(err, invalid) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if state.Phase != lifecycle.PhaseIdle || state.Notice != lifecycle.ValidationNotice {
		t.Fatalf("unexpected state: %+v", state)
	}
	if called {
		t.Fatalf("transport must not be called for an invalid selection")
	}
}

func TestMachineSubmit_ServerDetailThenResubmit(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls int
	)
	sender := senderFunc(func(context.Context, transport.Request) (json.RawMessage, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, &transport.Error{Kind: transport.KindHTTPStatus, Status: 500, Body: []byte(`{"detail":"rate limited"}`)}
		}
		return json.RawMessage(`{"framework":"F","user_context":"U"}`), nil
	})
	machine := lifecycle.New(sender)
	validator := validRequest("quarterly")

	state, err := machine.Submit(context.Background(), validator)
	var info *lifecycle.ErrorInfo
	if !errors.As(err, &info) {
		t.Fatalf("expected ErrorInfo, got %v", err)
	}
	if state.Phase != lifecycle.PhaseFailed || state.Err.Message != "rate limited" || state.Err.Kind != lifecycle.ServerDetail {
		t.Fatalf("unexpected failed state: %+v", state)
	}

	state, err = machine.Submit(context.Background(), validator)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if state.Phase != lifecycle.PhaseSuccess {
		t.Fatalf("resubmit phase = %s", state.Phase)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (no automatic retry)", calls)
	}
}

func TestMachineSubmit_MalformedResponse(t *testing.T) {
	t.Parallel()

	machine := lifecycle.New(respond(`{"result":"ok"}`))
	state, err := machine.Submit(context.Background(), validRequest("quarterly"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if state.Phase != lifecycle.PhaseFailed || state.Err.Kind != lifecycle.MalformedResponse {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestMachineSubmit_LatestSubmitWins(t *testing.T) {
	t.Parallel()

	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	sender := senderFunc(func(_ context.Context, req transport.Request) (json.RawMessage, error) {
		body := req.Body.(model.GenerationRequest)
		if body.Level == "annual" {
			close(slowStarted)
			// Ignores cancellation to model a response that arrives late.
			<-releaseSlow
			return json.RawMessage(`{"framework":"A","user_context":"slow"}`), nil
		}
		return json.RawMessage(`{"framework":"B","user_context":"fast"}`), nil
	})
	machine := lifecycle.New(sender)

	type outcome struct {
		state lifecycle.State
		err   error
	}
	slow := make(chan outcome, 1)
	go func() {
		state, err := machine.Submit(context.Background(), validRequest("annual"))
		slow <- outcome{state, err}
	}()
	<-slowStarted

	state, err := machine.Submit(context.Background(), validRequest("quarterly"))
	if err != nil {
		t.Fatalf("fast submit: %v", err)
	}
	if state.Result.FrameworkText != "B" {
		t.Fatalf("fast result = %+v", state.Result)
	}

	close(releaseSlow)
	late := <-slow
	if !errors.Is(late.err, lifecycle.ErrSuperseded) {
		t.Fatalf("slow submit should be superseded, got %v", late.err)
	}

	final := machine.State()
	if final.Phase != lifecycle.PhaseSuccess || final.Result.FrameworkText != "B" {
		t.Fatalf("final state should keep B, got %+v", final)
	}
}

func TestMachineListener_FinalStateIsLatestGeneration(t *testing.T) {
	t.Parallel()

	sender := senderFunc(func(_ context.Context, req transport.Request) (json.RawMessage, error) {
		body := req.Body.(model.GenerationRequest)
		runtime.Gosched()
		return json.RawMessage(`{"framework":"F-` + body.Level + `","user_context":"C"}`), nil
	})

	var (
		mu        sync.Mutex
		last      lifecycle.State
		delivered []uint64
	)
	machine := lifecycle.New(sender, lifecycle.WithListener(func(s lifecycle.State) {
		mu.Lock()
		defer mu.Unlock()
		last = s
		delivered = append(delivered, s.Generation)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 4 {
				machine.Reset()
				return
			}
			_, _ = machine.Submit(context.Background(), validRequest(fmt.Sprintf("L%d", i)))
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(machine.State(), last); diff != "" {
		t.Fatalf("listener saw a stale final state (-machine +listener):\n%s", diff)
	}
	for i := 1; i < len(delivered); i++ {
		if delivered[i] < delivered[i-1] {
			t.Fatalf("generation %d delivered after %d", delivered[i], delivered[i-1])
		}
	}
}

func TestMachineReset_InvalidatesInFlight(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	sender := senderFunc(func(ctx context.Context, _ transport.Request) (json.RawMessage, error) {
		close(started)
		<-ctx.Done()
		return nil, &transport.Error{Kind: transport.KindCancelled, Err: ctx.Err()}
	})
	machine := lifecycle.New(sender)

	done := make(chan error, 1)
	go func() {
		_, err := machine.Submit(context.Background(), validRequest("quarterly"))
		done <- err
	}()
	<-started
	machine.Reset()

	if err := <-done; !errors.Is(err, lifecycle.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if state := machine.State(); state.Phase != lifecycle.PhaseIdle {
		t.Fatalf("phase = %s, want idle", state.Phase)
	}
}

func TestMachineSubmit_PairShapeWarnsOnce(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	machine := lifecycle.New(respond(`{"prompts":["F","U"]}`), lifecycle.WithLogger(zap.New(core)))

	for i := 0; i < 3; i++ {
		state, err := machine.Submit(context.Background(), validRequest("quarterly"))
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if state.Result.Shape != model.ShapePair {
			t.Fatalf("shape = %s", state.Result.Shape)
		}
	}

	if got := logs.FilterMessage("backend returned deprecated prompts pair shape").Len(); got != 1 {
		t.Fatalf("deprecation warning logged %d times, want 1", got)
	}
}
