package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func args(values ...string) []json.RawMessage {
	raw := make([]json.RawMessage, len(values))
	for i, value := range values {
		raw[i] = json.RawMessage(value)
	}
	return raw
}

func TestInvoke(t *testing.T) {
	r := New()
	r.Module("offset", 10)
	r.Register("add", func(ctx context.Context, deps []any, args []json.RawMessage) (any, error) {
		offset, err := Dep[int](deps, 0)
		if err != nil {
			return nil, err
		}
		a, err := Arg[int](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[int](args, 1)
		if err != nil {
			return nil, err
		}
		return offset + a + b, nil
	})

	result, err := r.Invoke(context.Background(), job.Payload{
		Entrypoint: "add",
		Deps:       []string{"offset"},
		Args:       args("1", "2"),
	})
	require.NoError(t, err)
	assert.JSONEq(t, "13", string(result))

	_, err = r.Invoke(context.Background(), job.Payload{Entrypoint: "add", Deps: []string{"offset"}, Args: args("1")})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, utils.ErrBadRequest)

	_, err = r.Invoke(context.Background(), job.Payload{Entrypoint: "add", Args: args("1", "2")})
	assert.ErrorIs(t, err, ErrUnknownModule)
}

func TestInvokeUnknown(t *testing.T) {
	r := New()
	r.Register("noop", func(context.Context, []any, []json.RawMessage) (any, error) {
		return nil, nil
	})

	_, err := r.Invoke(context.Background(), job.Payload{Entrypoint: "missing"})
	assert.ErrorIs(t, err, ErrUnknownEntrypoint)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	_, err = r.Invoke(context.Background(), job.Payload{Entrypoint: "noop", Deps: []string{"missing"}})
	assert.ErrorIs(t, err, ErrUnknownModule)

	result, err := r.Invoke(context.Background(), job.Payload{Entrypoint: "noop"})
	require.NoError(t, err)
	assert.Equal(t, "null", string(result))
}

func TestInvokeRawResult(t *testing.T) {
	r := New()
	r.Register("raw", func(context.Context, []any, []json.RawMessage) (any, error) {
		return json.RawMessage(`{"a":1}`), nil
	})

	result, err := r.Invoke(context.Background(), job.Payload{Entrypoint: "raw"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(result))
}

func TestInvokeFailure(t *testing.T) {
	r := New()
	r.Register("fail", func(context.Context, []any, []json.RawMessage) (any, error) {
		return nil, errors.New("Failing on purpose.")
	})
	r.Register("panic", func(context.Context, []any, []json.RawMessage) (any, error) {
		panic("boom")
	})

	_, err := r.Invoke(context.Background(), job.Payload{Entrypoint: "fail"})
	assert.EqualError(t, err, "Failing on purpose.")

	_, err = r.Invoke(context.Background(), job.Payload{Entrypoint: "panic"})
	var detailed utils.DetailedError
	require.True(t, errors.As(err, &detailed))
	assert.Contains(t, detailed.Error(), "boom")
	assert.NotEmpty(t, detailed.Details())
}

func TestEntrypoints(t *testing.T) {
	r := New()
	fn := func(context.Context, []any, []json.RawMessage) (any, error) { return nil, nil }
	r.Register("b", fn)
	r.Register("a", fn)
	assert.Equal(t, []string{"a", "b"}, r.Entrypoints())
}

func TestDepType(t *testing.T) {
	_, err := Dep[string]([]any{1}, 0)
	assert.Error(t, err)

	_, err = Dep[string](nil, 0)
	assert.ErrorIs(t, err, ErrUnknownModule)
}

func TestNegativeIndex(t *testing.T) {
	_, err := Arg[int]([]json.RawMessage{json.RawMessage(`1`)}, -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Dep[int]([]any{1}, -1)
	assert.ErrorIs(t, err, ErrUnknownModule)
}
