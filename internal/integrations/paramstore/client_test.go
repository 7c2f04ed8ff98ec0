package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeSSM serves parameters from a map and counts calls.
type fakeSSM struct {
	values map[string]string
	err    error
	calls  int
	last   *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	f.last = in
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[aws.ToString(in.Name)]
	if !ok {
		return nil, &types.ParameterNotFound{Message: aws.String("not found")}
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name:  in.Name,
		Value: aws.String(v),
		Type:  types.ParameterTypeSecureString,
	}}, nil
}

func TestGetParameter_DecryptsAndCaches(t *testing.T) {
	api := &fakeSSM{values: map[string]string{"/bot/telegram-token": `{"token":"123:abc"}`}}
	client, err := New(api)
	require.NoError(t, err)

	v, err := client.GetParameter(context.Background(), " /bot/telegram-token ")
	require.NoError(t, err)
	require.Equal(t, `{"token":"123:abc"}`, v)
	require.True(t, aws.ToBool(api.last.WithDecryption))

	_, err = client.GetParameter(context.Background(), "/bot/telegram-token")
	require.NoError(t, err)
	require.Equal(t, 1, api.calls)
}

func TestGetParameter_NotFound(t *testing.T) {
	client, err := New(&fakeSSM{values: map[string]string{}})
	require.NoError(t, err)

	_, err = client.GetParameter(context.Background(), "/bot/open-ai-token")
	require.ErrorIs(t, err, ErrParameterNotFound)
	require.Contains(t, err.Error(), "/bot/open-ai-token")
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &missingValueSSM{}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "has no value")
}

type missingValueSSM struct{}

func (missingValueSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: in.Name}}, nil
}

func TestGetParameter_APIErrorIsNotCached(t *testing.T) {
	api := &fakeSSM{err: errors.New("throttled")}
	client, err := New(api)
	require.NoError(t, err)

	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "throttled")
	require.False(t, errors.Is(err, ErrParameterNotFound))

	api.err = nil
	api.values = map[string]string{"p": "v"}
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "v", v)
	require.Equal(t, 2, api.calls)
}

func TestGetParameter_Validation(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")

	client, err := New(&fakeSSM{})
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.ErrorContains(t, err, "required")

	_, err = New(nil)
	require.ErrorContains(t, err, "must not be nil")
}

func TestToken_ThroughSSMAndFallback(t *testing.T) {
	client, err := New(&fakeSSM{values: map[string]string{"/bot/telegram-token": `{"token":"from-ssm"}`}})
	require.NoError(t, err)

	g := Fallback{NewStatic(map[string]string{"/bot/telegram-token": ""}), client}
	tok, err := Token(context.Background(), g, "/bot/telegram-token")
	require.NoError(t, err)
	require.Equal(t, "from-ssm", tok)

	g = Fallback{NewStatic(map[string]string{"/bot/telegram-token": "from-env"}), client}
	tok, err = Token(context.Background(), g, "/bot/telegram-token")
	require.NoError(t, err)
	require.Equal(t, "from-env", tok)
}
