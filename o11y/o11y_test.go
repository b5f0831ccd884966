package o11y

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestFromContext(t *testing.T) {
	t.Run("no provider", func(t *testing.T) {
		ctx := context.Background()
		p := FromContext(ctx)
		assert.Check(t, cmp.Equal(p, Provider(defaultProvider)))
	})

	t.Run("with provider in context", func(t *testing.T) {
		expected := &noopProvider{}
		ctx := WithProvider(context.Background(), expected)

		actual := FromContext(ctx)
		assert.Check(t, cmp.Equal(actual, Provider(expected)))
	})
}

func TestLog_WithoutProvider(t *testing.T) {
	ctx := context.Background()

	Log(ctx, "foo", Field("name", "value"))
	LogError(ctx, "foo", errors.New("bar"), Field("name", "value"))
}

func TestStartSpan_WithoutProvider(t *testing.T) {
	ctx := context.Background()

	nCtx, span := StartSpan(ctx, "foo")
	assert.Check(t, span != nil, "should have returned a noop span")
	assert.Check(t, cmp.Equal(ctx, nCtx), "should have returned ctx unmodified")
}

func TestAddResultToSpan(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		result  string
		error   string
		warning string
	}{
		{
			name:   "all-good",
			result: "success",
		},
		{
			name:   "normal-error",
			err:    errors.New("my error"),
			result: "error",
			error:  "my error",
		},
		{
			name:    "warning",
			err:     fmt.Errorf("wrapped: %w", NewWarning("not serious")),
			warning: "wrapped: not serious",
		},
		{
			name:    "canceled",
			err:     fmt.Errorf("stopping: %w", context.Canceled),
			result:  "canceled",
			warning: "stopping: context canceled",
		},
		{
			name:    "deadline",
			err:     context.DeadlineExceeded,
			result:  "canceled",
			warning: "context deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span := &fakeSpan{fields: map[string]interface{}{}}
			AddResultToSpan(span, tt.err)

			assert.Check(t, cmp.Equal(span.str("result"), tt.result))
			assert.Check(t, cmp.Equal(span.str("error"), tt.error))
			assert.Check(t, cmp.Equal(span.str("warning"), tt.warning))
		})
	}
}

func TestEnd(t *testing.T) {
	span := &fakeSpan{fields: map[string]interface{}{}}
	f := func() (err error) {
		defer End(span, &err)
		err = errors.New("assigned late")
		return err
	}
	_ = f()

	assert.Check(t, span.ended)
	assert.Check(t, cmp.Equal(span.str("error"), "assigned late"))
}

func TestWarning(t *testing.T) {
	origErr := NewWarning("a managed error string")
	assert.Check(t, IsWarning(origErr))
	assert.Check(t, !IsWarningNoUnwrap(origErr))

	err := fmt.Errorf("some other error: %w", origErr)
	assert.Check(t, errors.Is(err, origErr))
	assert.Check(t, IsWarning(err))
	assert.Check(t, DontErrorTrace(err))

	assert.Check(t, !errors.Is(NewWarning("one"), NewWarning("one")), "two warnings are not Is")
	assert.Check(t, !IsWarning(errors.New("plain")))
	assert.Check(t, DontErrorTrace(context.Canceled))
}

type fakeSpan struct {
	fields  map[string]interface{}
	metrics []Metric
	ended   bool
}

func (s *fakeSpan) AddField(key string, val interface{})    { s.fields["app."+key] = val }
func (s *fakeSpan) AddRawField(key string, val interface{}) { s.fields[key] = val }
func (s *fakeSpan) RecordMetric(metric Metric)              { s.metrics = append(s.metrics, metric) }
func (s *fakeSpan) End()                                    { s.ended = true }

func (s *fakeSpan) str(key string) string {
	v, _ := s.fields[key].(string)
	return v
}
