package providers

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentfabric/internal/domain"
)

type fakeGenerator struct {
	name  string
	err   error
	calls atomic.Int32
}

func (f *fakeGenerator) Name() string { return f.name }

func (f *fakeGenerator) Generate(_ context.Context, req Request) (*Output, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &Output{URL: "https://cdn.example/" + req.PromptText}, nil
}

func TestSyntheticIsDeterministic(t *testing.T) {
	s := NewSynthetic(0, zerolog.Nop())
	req := Request{PromptText: "a red fox", ModelID: "m1", Provider: "openai"}

	first, err := s.Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := s.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, "image/png", first.MIME)
	assert.Contains(t, first.Key, "synthetic/m1/")

	other, err := s.Generate(context.Background(), Request{PromptText: "a blue fox", ModelID: "m1", Provider: "openai"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Key, other.Key)
}

func TestSyntheticHonoursAspectRatio(t *testing.T) {
	s := NewSynthetic(0, zerolog.Nop())
	out, err := s.Generate(context.Background(), Request{
		PromptText: "wide",
		Settings:   &domain.GenerationSettings{AspectRatio: "16:9"},
	})
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 910, cfg.Width)
	assert.Equal(t, 512, cfg.Height)
}

func TestSyntheticRespectsCancellation(t *testing.T) {
	s := NewSynthetic(time.Hour, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Generate(ctx, Request{PromptText: "x"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestAspectSize(t *testing.T) {
	cases := map[string][2]int{
		"":     {512, 512},
		"1:1":  {512, 512},
		"4:3":  {682, 512},
		"3:4":  {512, 682},
		"9:16": {512, 910},
		"bad":  {512, 512},
		"0:4":  {512, 512},
	}
	for in, want := range cases {
		w, h := aspectSize(in)
		assert.Equal(t, want, [2]int{w, h}, in)
	}
}

func TestComposePrompt(t *testing.T) {
	got := composePrompt(Request{
		PromptText: "a cat",
		Settings:   &domain.GenerationSettings{AspectRatio: "1:1", NegativePrompt: "blur"},
	})
	assert.Equal(t, "a cat\nAspect ratio: 1:1\nAvoid: blur", got)
	assert.Equal(t, "a cat", composePrompt(Request{PromptText: "a cat"}))
}

func TestRegistryUnknownProvider(t *testing.T) {
	r := NewRegistry(nil, zerolog.Nop())
	_, err := r.Generate(context.Background(), Request{Provider: "nope"})
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistryWrapsProviderErrors(t *testing.T) {
	r := NewRegistry(nil, zerolog.Nop())
	boom := errors.New("quota exceeded")
	r.Register("Acme", &fakeGenerator{name: "acme", err: boom})

	_, err := r.Generate(context.Background(), Request{Provider: "ACME"})
	require.ErrorIs(t, err, domain.ErrProviderFailure)
	require.ErrorIs(t, err, boom)
}

func TestRegistryDispatchesByName(t *testing.T) {
	r := NewRegistry(nil, zerolog.Nop())
	a := &fakeGenerator{name: "a"}
	b := &fakeGenerator{name: "b"}
	r.Register("a", a)
	r.Register("b", b)

	out, err := r.Generate(context.Background(), Request{Provider: "b", PromptText: "p"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/p", out.URL)
	assert.EqualValues(t, 0, a.calls.Load())
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestBuildFallsBackToSynthetic(t *testing.T) {
	synthetic := NewSynthetic(0, zerolog.Nop())
	r, err := Build(context.Background(), Keys{}, Endpoints{}, synthetic, nil, zerolog.Nop())
	require.NoError(t, err)

	for _, name := range []string{NameOpenAI, NameGoogle, NameAnthropic, NameQwen, NameSynthetic} {
		g, ok := r.Lookup(name)
		require.True(t, ok, name)
		assert.Same(t, synthetic, g, name)
	}
}

func TestBuildRegistersConfiguredClients(t *testing.T) {
	synthetic := NewSynthetic(0, zerolog.Nop())
	r, err := Build(context.Background(), Keys{NameOpenAI: "sk-test", NameAnthropic: "ak-test", NameQwen: "qk-test"}, Endpoints{OpenAI: "http://127.0.0.1:1"}, synthetic, nil, zerolog.Nop())
	require.NoError(t, err)

	g, _ := r.Lookup(NameOpenAI)
	assert.IsType(t, &OpenAIImages{}, g)
	g, _ = r.Lookup(NameAnthropic)
	assert.IsType(t, &Claude{}, g)
	g, _ = r.Lookup(NameQwen)
	assert.IsType(t, &Qwen{}, g)
	g, _ = r.Lookup(NameGoogle)
	assert.Same(t, synthetic, g)
}

func TestThrottleLimitsPerProvider(t *testing.T) {
	th := NewThrottle(1)
	ctx := context.Background()
	require.NoError(t, th.Wait(ctx, "a"))
	require.NoError(t, th.Wait(ctx, "b"))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, th.Wait(short, "a"))
}

func TestThrottleDisabled(t *testing.T) {
	th := NewThrottle(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, th.Wait(context.Background(), "a"))
	}
}
