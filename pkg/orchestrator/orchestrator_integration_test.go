package orchestrator_test

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-myimpact/pkg/form"
	"github.com/goliatone/go-myimpact/pkg/lifecycle"
	"github.com/goliatone/go-myimpact/pkg/metadata"
	"github.com/goliatone/go-myimpact/pkg/model"
	"github.com/goliatone/go-myimpact/pkg/orchestrator"
	"github.com/goliatone/go-myimpact/pkg/presenter"
	"github.com/goliatone/go-myimpact/pkg/testsupport"
	"github.com/goliatone/go-myimpact/pkg/transport"
)

func newSession(t *testing.T, backend *testsupport.Backend, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	t.Helper()

	client := &http.Client{Transport: &http.Transport{}}
	t.Cleanup(client.CloseIdleConnections)

	base := []orchestrator.Option{
		orchestrator.WithBaseURL(backend.URL()),
		orchestrator.WithHTTPClient(client),
		orchestrator.WithMetadataOptions(metadata.WithBackoff(func(int) time.Duration { return 0 })),
	}
	session := orchestrator.New(append(base, opts...)...)
	t.Cleanup(session.Close)
	return session
}

func fillScenario(t *testing.T, engine *form.Engine) {
	t.Helper()

	_, err := engine.SetScale("team")
	require.NoError(t, err)
	_, err = engine.SetLevel("quarterly")
	require.NoError(t, err)
	_, err = engine.SetGrowthIntensity("moderate")
	require.NoError(t, err)
	_, err = engine.SetOrganization(model.NoOrganization())
	require.NoError(t, err)
	_, err = engine.SetGoalStyle("concise")
	require.NoError(t, err)
}

func TestSession_GenerateScenario(t *testing.T) {
	t.Parallel()

	backend := testsupport.NewBackend(t, testsupport.WithGenerate(func(map[string]any) (int, any) {
		return http.StatusOK, map[string]string{
			"framework":    "Set a quarterly team goal.",
			"user_context": "Focus on delivery.",
		}
	}))
	session := newSession(t, backend)

	engine, err := session.Start(testsupport.Context())
	require.NoError(t, err)
	fillScenario(t, engine)

	state, err := session.Submit(testsupport.Context())
	require.NoError(t, err)
	require.Equal(t, lifecycle.PhaseSuccess, state.Phase)

	view, ok := session.View()
	require.True(t, ok)

	want := "[GOAL FRAMEWORK]\nSet a quarterly team goal.\n\n[YOUR CUSTOMIZATION]\nFocus on delivery."
	require.Equal(t, want, view.Preview())
	both, err := view.Copy(presenter.CopyBoth)
	require.NoError(t, err)
	require.Equal(t, want, both)

	requests := backend.GenerateRequests()
	require.Len(t, requests, 1)
	golden := filepath.Join("testdata", "generate_request.golden.json")
	got, err := json.MarshalIndent(requests[0], "", "  ")
	require.NoError(t, err)
	if testsupport.WriteMaybeGolden(t, golden, append(got, '\n')) {
		return
	}
	var wantBody map[string]any
	require.NoError(t, json.Unmarshal(testsupport.MustReadGolden(t, golden), &wantBody))
	if diff := cmp.Diff(wantBody, requests[0]); diff != "" {
		t.Fatalf("generate body mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_PairShapeNormalizesToSameResult(t *testing.T) {
	t.Parallel()

	named := newSession(t, testsupport.NewBackend(t))
	pair := newSession(t, testsupport.NewBackend(t, testsupport.WithGenerate(testsupport.PairGenerate)))

	var results []model.GenerationResult
	for _, session := range []*orchestrator.Orchestrator{named, pair} {
		engine, err := session.Start(testsupport.Context())
		require.NoError(t, err)
		fillScenario(t, engine)
		state, err := session.Submit(testsupport.Context())
		require.NoError(t, err)
		result := *state.Result
		result.Shape = ""
		results = append(results, result)
	}
	require.Equal(t, results[0], results[1])
}

func TestSession_ServerDetailKeepsSelectionAndAllowsResubmit(t *testing.T) {
	t.Parallel()

	backend := testsupport.NewBackend(t, testsupport.WithFault(testsupport.RouteGenerate, testsupport.Fault{
		Status: http.StatusInternalServerError,
		Body:   `{"detail":"rate limited"}`,
		Times:  1,
	}))
	session := newSession(t, backend)

	engine, err := session.Start(testsupport.Context())
	require.NoError(t, err)
	fillScenario(t, engine)
	before := engine.Selection()

	state, err := session.Submit(testsupport.Context())
	require.Error(t, err)
	require.Equal(t, lifecycle.PhaseFailed, state.Phase)
	require.Equal(t, "rate limited", state.Err.Message)
	require.Equal(t, before, engine.Selection())

	state, err = session.Submit(testsupport.Context())
	require.NoError(t, err)
	require.Equal(t, lifecycle.PhaseSuccess, state.Phase)
}

func TestSession_ValidationFailureNeverCallsBackend(t *testing.T) {
	t.Parallel()

	backend := testsupport.NewBackend(t)
	session := newSession(t, backend)

	_, err := session.Start(testsupport.Context())
	require.NoError(t, err)

	state, err := session.Submit(testsupport.Context())
	require.ErrorIs(t, err, form.ErrMissingField)
	require.Equal(t, lifecycle.PhaseIdle, state.Phase)
	require.Equal(t, lifecycle.ValidationNotice, state.Notice)
	require.Zero(t, backend.Calls(testsupport.RouteGenerate))
}

func TestSession_SubmitBeforeStart(t *testing.T) {
	t.Parallel()

	session := newSession(t, testsupport.NewBackend(t))
	_, err := session.Submit(testsupport.Context())
	require.ErrorIs(t, err, orchestrator.ErrNotStarted)
}

func TestSession_MetadataRetriedAfterTimeout(t *testing.T) {
	t.Parallel()

	backend := testsupport.NewBackend(t, testsupport.WithFault(testsupport.RouteMetadata, testsupport.Fault{
		Delay: 500 * time.Millisecond,
		Times: 1,
	}))
	session := newSession(t, backend, orchestrator.WithMetadataOptions(metadata.WithTimeout(50*time.Millisecond)))

	_, err := session.Start(testsupport.Context())
	require.NoError(t, err)
	require.Equal(t, 2, backend.Calls(testsupport.RouteMetadata))
	require.Equal(t, metadata.StatusReady, session.MetadataStatus())
}

func TestSession_MetadataFailureIsFinal(t *testing.T) {
	t.Parallel()

	backend := testsupport.NewBackend(t, testsupport.WithFault(testsupport.RouteMetadata, testsupport.Fault{
		Status: http.StatusInternalServerError,
		Body:   `{"detail":"boom"}`,
	}))
	session := newSession(t, backend)

	_, err := session.Start(testsupport.Context())
	require.ErrorIs(t, err, metadata.ErrInvalidResponse)
	_, err = session.Start(testsupport.Context())
	require.ErrorIs(t, err, metadata.ErrInvalidResponse)
	require.Equal(t, 1, backend.Calls(testsupport.RouteMetadata))
	require.Equal(t, metadata.StatusFailed, session.MetadataStatus())
}

func TestSession_FocusContentFlowsToPanel(t *testing.T) {
	t.Parallel()

	content := "Reliability and cost."
	backend := testsupport.NewBackend(t, testsupport.WithFocus("platform", &content))
	session := newSession(t, backend)

	engine, err := session.Start(testsupport.Context())
	require.NoError(t, err)

	_, err = engine.SetOrganization(model.Org("platform"))
	require.NoError(t, err)
	engine.Wait()
	require.Equal(t, form.FocusPanel{Visible: true, Org: "platform", Content: content}, engine.FocusPanel())

	_, err = engine.SetOrganization(model.Org("demo"))
	require.NoError(t, err)
	engine.Wait()
	require.False(t, engine.FocusPanel().Visible)
	require.Equal(t, 2, backend.Calls(testsupport.RouteFocus))
}

func TestSession_ResetReturnsLifecycleToIdle(t *testing.T) {
	t.Parallel()

	session := newSession(t, testsupport.NewBackend(t))
	engine, err := session.Start(testsupport.Context())
	require.NoError(t, err)
	fillScenario(t, engine)

	_, err = session.Submit(testsupport.Context())
	require.NoError(t, err)

	session.Reset()
	require.Equal(t, lifecycle.PhaseIdle, session.Lifecycle().State().Phase)
	_, ok := session.View()
	require.False(t, ok)
	require.Empty(t, engine.Selection().Scale)
}

func TestSession_Health(t *testing.T) {
	t.Parallel()

	healthy := newSession(t, testsupport.NewBackend(t))
	require.True(t, healthy.Healthy(testsupport.Context()))

	unhealthy := newSession(t, testsupport.NewBackend(t, testsupport.WithUnhealthy()))
	require.False(t, unhealthy.Healthy(testsupport.Context()))
	require.True(t, transport.IsKind(unhealthy.Health(testsupport.Context()), transport.KindHTTPStatus))
}
